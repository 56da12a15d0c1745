package worldbank

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"popdash/domain/population"
)

// pageMeta is element 0 of the [metadata, records] envelope.
type pageMeta struct {
	Page    int
	Pages   int
	PerPage int
	Total   int
}

// apiRecord mirrors one entry of the records array.
type apiRecord struct {
	Date    string   `json:"date"`
	Value   *float64 `json:"value"`
	Country struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"country"`
}

// parseEnvelope validates the two-element envelope and decodes the records.
// A null records element is the API's way of saying "no data" and yields an
// empty slice.
func parseEnvelope(body []byte) (pageMeta, []population.Record, error) {
	if !gjson.ValidBytes(body) {
		return pageMeta{}, nil, fmt.Errorf("response is not valid JSON")
	}

	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return pageMeta{}, nil, fmt.Errorf("expected a JSON array envelope, got %s", root.Type)
	}

	head := root.Get("0")
	if msg := head.Get("message.0.value"); msg.Exists() {
		return pageMeta{}, nil, fmt.Errorf("API error: %s", msg.String())
	}
	if !head.IsObject() {
		return pageMeta{}, nil, fmt.Errorf("missing pagination metadata")
	}

	meta := pageMeta{
		Page:    int(head.Get("page").Int()),
		Pages:   int(head.Get("pages").Int()),
		PerPage: int(head.Get("per_page").Int()),
		Total:   int(head.Get("total").Int()),
	}

	data := root.Get("1")
	if !data.Exists() {
		return meta, nil, fmt.Errorf("missing records element")
	}
	if data.Type == gjson.Null {
		return meta, []population.Record{}, nil
	}
	if !data.IsArray() {
		return meta, nil, fmt.Errorf("records element is %s, not an array", data.Type)
	}

	var raw []apiRecord
	if err := json.Unmarshal([]byte(data.Raw), &raw); err != nil {
		return meta, nil, fmt.Errorf("failed to decode records: %w", err)
	}

	records := make([]population.Record, 0, len(raw))
	for _, r := range raw {
		records = append(records, population.Record{
			Date:    r.Date,
			Value:   r.Value,
			Country: population.CountryRef{ID: r.Country.ID, Value: r.Country.Value},
		})
	}
	return meta, records, nil
}
