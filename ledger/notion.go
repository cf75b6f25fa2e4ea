package ledger

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

// notionVersion pins the Notion API revision this client speaks.
const notionVersion = "2022-06-28"

// NotionConfig holds configuration for the Notion ledger sink.
type NotionConfig struct {
	APIKey     string
	DatabaseID string // the XP Ledger database
	BaseURL    string // defaults to the public API endpoint
	Timeout    time.Duration
}

// Notion appends awards as pages of the XP Ledger database. Row schema:
// "XP Entry" (title), "Avatar" (select), "XP Awarded" (number), "Reason"
// (rich text), "Timestamp" (date), plus a "Task" relation back to the
// task database when the entry carries a task id.
type Notion struct {
	apiKey     string
	databaseID string
	baseURL    string
	client     *http.Client
}

// NewNotion creates a Notion ledger sink.
func NewNotion(cfg NotionConfig) (*Notion, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.DatabaseID == "" {
		return nil, fmt.Errorf("database id is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.notion.com/v1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Notion{
		apiKey:     cfg.APIKey,
		databaseID: cfg.DatabaseID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type notionPageCreate struct {
	Parent     notionParent     `json:"parent"`
	Properties notionEntryProps `json:"properties"`
}

type notionParent struct {
	DatabaseID string `json:"database_id"`
}

type notionEntryProps struct {
	Entry     notionTitleProp     `json:"XP Entry"`
	Avatar    notionSelectProp    `json:"Avatar"`
	Awarded   notionNumberProp    `json:"XP Awarded"`
	Reason    notionRichTextProp  `json:"Reason"`
	Timestamp notionDateProp      `json:"Timestamp"`
	Task      *notionRelationProp `json:"Task,omitempty"`
}

type notionTitleProp struct {
	Title []notionRichText `json:"title"`
}

type notionRichTextProp struct {
	RichText []notionRichText `json:"rich_text"`
}

type notionRichText struct {
	Text notionTextContent `json:"text"`
}

type notionTextContent struct {
	Content string `json:"content"`
}

type notionSelectProp struct {
	Select notionSelectName `json:"select"`
}

type notionSelectName struct {
	Name string `json:"name"`
}

type notionNumberProp struct {
	Number int `json:"number"`
}

type notionDateProp struct {
	Date notionDateStart `json:"date"`
}

type notionDateStart struct {
	Start string `json:"start"`
}

type notionRelationProp struct {
	Relation []notionRelationID `json:"relation"`
}

type notionRelationID struct {
	ID string `json:"id"`
}

// Append implements the Ledger interface.
func (n *Notion) Append(ctx context.Context, entry Entry) error {
	page := notionPageCreate{
		Parent: notionParent{DatabaseID: n.databaseID},
		Properties: notionEntryProps{
			Entry: notionTitleProp{Title: []notionRichText{
				{Text: notionTextContent{Content: "XP for " + entry.Title}},
			}},
			Avatar:  notionSelectProp{Select: notionSelectName{Name: entry.Source}},
			Awarded: notionNumberProp{Number: entry.Points},
			Reason: notionRichTextProp{RichText: []notionRichText{
				{Text: notionTextContent{Content: entry.Reason}},
			}},
			Timestamp: notionDateProp{Date: notionDateStart{
				Start: entry.AwardedAt.Format(time.RFC3339),
			}},
		},
	}
	if entry.TaskID != "" {
		page.Properties.Task = &notionRelationProp{
			Relation: []notionRelationID{{ID: entry.TaskID}},
		}
	}

	if err := n.createPage(ctx, page); err != nil {
		return faults.WrapWithCode(err, faults.CodeLedgerWrite, "create ledger page",
			faults.WithTaskID(entry.TaskID))
	}
	return nil
}

func (n *Notion) createPage(ctx context.Context, page notionPageCreate) error {
	body, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", n.baseURL+"/pages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+n.apiKey)
	httpReq.Header.Set("Notion-Version", notionVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := n.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return fmt.Errorf("notion API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}
	return nil
}
