package timeline

import "github.com/diskd-ai/ccbox/internal/domain"

// Page is one window of a timeline, for the paginated CLI surface.
type Page struct {
	Items      []domain.Item
	TotalItems int
	Warnings   int
	Truncated  bool
}

// LoadPage re-opens the session and returns items [offset, offset+limit).
// The assembler's item cap bounds the working set; the returned page holds
// only the requested window.
func LoadPage(path string, offset, limit int) (Page, error) {
	timeline, err := Load(path)
	if err != nil {
		return Page{}, err
	}

	page := Page{
		TotalItems: len(timeline.Items),
		Warnings:   timeline.Warnings,
		Truncated:  timeline.Truncated,
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(timeline.Items) || limit <= 0 {
		return page, nil
	}
	end := offset + limit
	if end > len(timeline.Items) {
		end = len(timeline.Items)
	}
	page.Items = append(page.Items, timeline.Items[offset:end]...)
	return page, nil
}
