package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/mstgnz/hummpay/provider"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// CallLog is one provider call as stored in OpenSearch
type CallLog struct {
	Timestamp    time.Time `json:"timestamp"`
	Operation    string    `json:"operation"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	RequestBody  string    `json:"request_body,omitempty"`
	StatusCode   int       `json:"status_code"`
	ResponseBody string    `json:"response_body,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
}

// Logger handles OpenSearch logging operations
type Logger struct {
	client  *Client
	timeout time.Duration
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{
		client:  client,
		timeout: 5 * time.Second,
	}
}

func (l *Logger) index(ctx context.Context, indexName string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: indexName,
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}
	return nil
}

// LogSystemEvent indexes a system log entry
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	if !l.client.IsEnabled() {
		return nil
	}
	return l.index(ctx, SystemLogIndex, entry)
}

// LogCall indexes a provider call with credentials redacted
func (l *Logger) LogCall(ctx context.Context, record provider.CallRecord) error {
	if !l.client.IsEnabled() {
		return nil
	}

	doc := CallLog{
		Timestamp:    time.Now().UTC(),
		Operation:    record.Operation,
		Method:       record.Method,
		URL:          SanitizeForLog(record.URL),
		RequestBody:  SanitizeForLog(record.RequestBody),
		StatusCode:   record.StatusCode,
		ResponseBody: SanitizeForLog(record.ResponseBody),
		DurationMs:   record.Duration.Milliseconds(),
	}
	if record.Err != nil {
		doc.Error = SanitizeForLog(record.Err.Error())
	}
	return l.index(ctx, CallLogIndex, doc)
}

// ObserveCall ships the record in the background so provider calls never wait on OpenSearch
func (l *Logger) ObserveCall(_ context.Context, record provider.CallRecord) {
	if !l.client.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		if err := l.LogCall(ctx, record); err != nil {
			log.Printf("Failed to log provider call to OpenSearch: %v", err)
		}
	}()
}

// RecentCalls returns the latest provider calls, optionally filtered by operation
func (l *Logger) RecentCalls(ctx context.Context, operation string, size int) ([]CallLog, error) {
	if !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}
	if size <= 0 || size > 100 {
		size = 100
	}

	query := map[string]any{"match_all": map[string]any{}}
	if operation != "" {
		query = map[string]any{"term": map[string]any{"operation": operation}}
	}
	searchQuery := map[string]any{
		"query": query,
		"sort": []map[string]any{
			{"timestamp": map[string]string{"order": "desc"}},
		},
		"size": size,
	}

	queryJSON, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{CallLogIndex},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("opensearch search error: %s", res.String())
	}

	var searchResult struct {
		Hits struct {
			Hits []struct {
				Source CallLog `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	calls := make([]CallLog, len(searchResult.Hits.Hits))
	for i, hit := range searchResult.Hits.Hits {
		calls[i] = hit.Source
	}
	return calls, nil
}

var sensitivePatterns = func() []*regexp.Regexp {
	fields := []string{"client_secret", "refresh_token", "access_token", "clientSecret", "refreshToken", "accessToken", "authorization"}
	var patterns []*regexp.Regexp
	for _, field := range fields {
		patterns = append(patterns,
			regexp.MustCompile(fmt.Sprintf(`("%s"\s*:\s*)"[^"]*"`, field)),
			regexp.MustCompile(fmt.Sprintf(`(%s=)[^&\s"]+`, field)),
		)
	}
	return patterns
}()

// SanitizeForLog redacts credentials and tokens in JSON bodies and query strings
func SanitizeForLog(data string) string {
	result := data
	for i, re := range sensitivePatterns {
		if i%2 == 0 {
			result = re.ReplaceAllString(result, `${1}"***REDACTED***"`)
		} else {
			result = re.ReplaceAllString(result, `${1}***REDACTED***`)
		}
	}
	return result
}
