package taskstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sidequest/faults"
)

// NotionBaseURL is the production Notion API endpoint.
const NotionBaseURL = "https://api.notion.com/v1"

// notionVersion pins the Notion API revision this client speaks.
const notionVersion = "2022-06-28"

// Task database property names. The board schema is fixed: a title, an
// optional notes column feeding the matcher, an optional due date, a
// status, and the awarded reward.
const (
	propTask   = "Task"
	propNotes  = "Notes"
	propDue    = "Due"
	propStatus = "Status"
	propReward = "Reward"

	statusDone = "Done"
)

// NotionConfig holds configuration for the Notion task store.
type NotionConfig struct {
	APIKey     string
	DatabaseID string
	BaseURL    string        // defaults to NotionBaseURL
	Timeout    time.Duration // per-request HTTP timeout
}

// NotionStore implements Store against a Notion database.
type NotionStore struct {
	apiKey     string
	databaseID string
	baseURL    string
	client     *http.Client
}

// NewNotionStore creates a Notion-backed task store.
func NewNotionStore(cfg NotionConfig) (*NotionStore, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.DatabaseID == "" {
		return nil, fmt.Errorf("database id is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = NotionBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &NotionStore{
		apiKey:     cfg.APIKey,
		databaseID: cfg.DatabaseID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type notionQuery struct {
	Filter      *notionFilter `json:"filter,omitempty"`
	StartCursor string        `json:"start_cursor,omitempty"`
}

type notionFilter struct {
	Property string            `json:"property"`
	Status   *notionStatusCond `json:"status,omitempty"`
}

type notionStatusCond struct {
	DoesNotEqual string `json:"does_not_equal,omitempty"`
}

type notionQueryResponse struct {
	Results    []notionPage `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

type notionPage struct {
	ID         string                    `json:"id"`
	Properties map[string]notionProperty `json:"properties"`
}

type notionProperty struct {
	Title    []notionText `json:"title,omitempty"`
	RichText []notionText `json:"rich_text,omitempty"`
	Date     *notionDate  `json:"date,omitempty"`
	Number   *float64     `json:"number,omitempty"`
	Status   *notionName  `json:"status,omitempty"`
}

type notionText struct {
	PlainText string `json:"plain_text"`
}

type notionDate struct {
	Start string `json:"start"`
}

type notionName struct {
	Name string `json:"name"`
}

// ListOpen implements the Store interface. It queries the task database
// for every page whose status is not Done, following pagination cursors.
func (s *NotionStore) ListOpen(ctx context.Context) ([]Record, error) {
	var records []Record
	cursor := ""
	for {
		query := notionQuery{
			Filter: &notionFilter{
				Property: propStatus,
				Status:   &notionStatusCond{DoesNotEqual: statusDone},
			},
			StartCursor: cursor,
		}

		var page notionQueryResponse
		url := fmt.Sprintf("%s/databases/%s/query", s.baseURL, s.databaseID)
		if err := s.doRequest(ctx, "POST", url, query, &page); err != nil {
			return nil, faults.WrapWithCode(err, faults.CodeStoreRead, "query task database")
		}

		for _, p := range page.Results {
			records = append(records, recordFromPage(p))
		}

		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return records, nil
}

type notionPatchBody struct {
	Properties notionPatchProps `json:"properties"`
}

type notionPatchProps struct {
	Status *notionStatusWrite `json:"Status,omitempty"`
	Reward *notionNumberWrite `json:"Reward,omitempty"`
}

type notionStatusWrite struct {
	Status notionName `json:"status"`
}

type notionNumberWrite struct {
	Number int `json:"number"`
}

// Patch implements the Store interface. It marks the page done and/or
// records the awarded reward.
func (s *NotionStore) Patch(ctx context.Context, id string, patch Patch) error {
	body := notionPatchBody{}
	if patch.Done {
		body.Properties.Status = &notionStatusWrite{Status: notionName{Name: statusDone}}
	}
	if patch.Reward != nil {
		body.Properties.Reward = &notionNumberWrite{Number: *patch.Reward}
	}

	url := fmt.Sprintf("%s/pages/%s", s.baseURL, id)
	if err := s.doRequest(ctx, "PATCH", url, body, nil); err != nil {
		return faults.WrapWithCode(err, faults.CodeStoreWrite, "patch task "+id,
			faults.WithTaskID(id))
	}
	return nil
}

// doRequest makes one HTTP round-trip and decodes the response into out
// when out is non-nil.
func (s *NotionStore) doRequest(ctx context.Context, method, url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Notion-Version", notionVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("notion API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// recordFromPage flattens a Notion page into a raw Record. Shape problems
// (no title, bad date) are left for Extract to reject.
func recordFromPage(p notionPage) Record {
	rec := Record{ID: p.ID}

	if prop, ok := p.Properties[propTask]; ok {
		rec.Title = joinText(prop.Title)
	}
	if prop, ok := p.Properties[propNotes]; ok {
		rec.Context = joinText(prop.RichText)
	}
	if prop, ok := p.Properties[propDue]; ok && prop.Date != nil {
		rec.Due = prop.Date.Start
	}
	if prop, ok := p.Properties[propReward]; ok && prop.Number != nil {
		reward := int(*prop.Number)
		rec.Reward = &reward
	}
	return rec
}

func joinText(parts []notionText) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.PlainText)
	}
	return strings.TrimSpace(b.String())
}
