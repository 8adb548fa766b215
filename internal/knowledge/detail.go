package knowledge

import "encoding/json"

type RelatedItem struct {
	Name           string `json:"name"`
	RelationToPoet string `json:"relation_to_poet"`
}

type BasicInfo struct {
	Dynasty   string   `json:"dynasty"`
	BirthYear *float64 `json:"birth_year"`
	DeathYear *float64 `json:"death_year"`
	Title     string   `json:"title"`
	Works     string   `json:"works"`
}

// Detail is the summary returned by GET /poet/{name}.
type Detail struct {
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Dynasty   string        `json:"dynasty"`
	BirthYear *float64      `json:"birth_year"`
	DeathYear *float64      `json:"death_year"`
	Title     string        `json:"title"`
	BasicInfo *BasicInfo    `json:"basic_info"`
	Works     []RelatedItem `json:"works"`
	Relations []RelatedItem `json:"relations"`
	Places    []RelatedItem `json:"places"`
}

// Detail projects the entry into its summary: the self record supplies the
// biographical fields, the remaining records partition by kind.
func (e *Entry) Detail() Detail {
	detail := Detail{
		Name:      e.Poet,
		Type:      "诗人",
		Works:     []RelatedItem{},
		Relations: []RelatedItem{},
		Places:    []RelatedItem{},
	}

	for _, record := range e.Records {
		switch record.Kind {
		case KindSelf:
			detail.Dynasty = record.Dynasty
			detail.BirthYear = record.BirthYear
			detail.DeathYear = record.DeathYear
			detail.Title = record.Title
			detail.BasicInfo = &BasicInfo{
				Dynasty:   record.Dynasty,
				BirthYear: record.BirthYear,
				DeathYear: record.DeathYear,
				Title:     record.Title,
				Works:     record.Works,
			}
		case KindWork:
			detail.Works = append(detail.Works, relatedItem(record))
		case KindPerson:
			detail.Relations = append(detail.Relations, relatedItem(record))
		case KindPlace:
			detail.Places = append(detail.Places, relatedItem(record))
		}
	}
	return detail
}

// PromptJSON serializes the full knowledge entry for prompt embedding.
func (e *Entry) PromptJSON() string {
	raws := make([]map[string]any, 0, len(e.Records))
	for _, record := range e.Records {
		if record.Raw != nil {
			raws = append(raws, record.Raw)
		}
	}
	payload, err := json.Marshal(raws)
	if err != nil {
		return "[]"
	}
	return string(payload)
}

func relatedItem(record Record) RelatedItem {
	return RelatedItem{Name: record.Name, RelationToPoet: record.RelationToPoet}
}
