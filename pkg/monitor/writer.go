package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// ColumnarSink inserts batches of rows into a table of an analytical
// datastore. The production sink speaks ClickHouse's native HTTP insert
// interface; tests supply an in-memory fake.
type ColumnarSink interface {
	InsertRows(ctx context.Context, table string, rows []interface{}) error
}

// ClickHouseHTTPSink is a ColumnarSink backed by ClickHouse's HTTP interface.
// No maintained ClickHouse driver appears anywhere in the reference corpus,
// so rows are shipped as newline-delimited JSON against
// "?query=INSERT INTO <table> FORMAT JSONEachRow", the same wire format the
// native client negotiates under the hood.
type ClickHouseHTTPSink struct {
	baseURL  string
	user     string
	password string
	client   *http.Client
}

// NewClickHouseHTTPSink builds a sink against a ClickHouse HTTP endpoint,
// e.g. "http://localhost:8123".
func NewClickHouseHTTPSink(baseURL, user, password string) *ClickHouseHTTPSink {
	return &ClickHouseHTTPSink{
		baseURL:  baseURL,
		user:     user,
		password: password,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// InsertRows marshals rows as JSONEachRow and POSTs them in a single insert.
func (s *ClickHouseHTTPSink) InsertRows(ctx context.Context, table string, rows []interface{}) error {
	if len(rows) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode row for %s: %w", table, err)
		}
	}

	url := fmt.Sprintf("%s/?query=%s", s.baseURL, fmt.Sprintf("INSERT INTO %s FORMAT JSONEachRow", table))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("build insert request for %s: %w", table, err)
	}
	if s.user != "" {
		req.SetBasicAuth(s.user, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("insert into %s: clickhouse returned status %d", table, resp.StatusCode)
	}
	return nil
}

// BatchedWriter buffers rows for a single table through a bounded channel
// and flushes them from a single background consumer in fixed-size chunks,
// so a slow sink never blocks probe execution.
type BatchedWriter struct {
	sink      ColumnarSink
	table     string
	batchSize int
	queue     chan []interface{}
}

// NewBatchedWriter builds a writer and starts its background consumer. The
// caller must cancel ctx to stop the consumer.
func NewBatchedWriter(ctx context.Context, sink ColumnarSink, table string, channelCapacity, batchSize int) *BatchedWriter {
	w := &BatchedWriter{
		sink:      sink,
		table:     table,
		batchSize: batchSize,
		queue:     make(chan []interface{}, channelCapacity),
	}
	go w.runConsumer(ctx)
	return w
}

// EnqueueRows submits rows for asynchronous insertion. It never blocks: if
// the queue is full the rows are dropped and an error is returned so the
// caller can log and move on without stalling probe execution.
func (w *BatchedWriter) EnqueueRows(rows []interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	select {
	case w.queue <- rows:
		return nil
	default:
		return fmt.Errorf("writer: queue full for table %s, dropping %d rows", w.table, len(rows))
	}
}

// QueueDepth returns the number of batches currently buffered.
func (w *BatchedWriter) QueueDepth() int {
	return len(w.queue)
}

func (w *BatchedWriter) runConsumer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.queue:
			if !ok {
				return
			}
			w.insertRows(ctx, batch)
		}
	}
}

func (w *BatchedWriter) insertRows(ctx context.Context, rows []interface{}) {
	for start := 0; start < len(rows); start += w.batchSize {
		end := start + w.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := w.sink.InsertRows(ctx, w.table, rows[start:end]); err != nil {
			log.Printf("⚠️  failed to insert %s rows: %v", w.table, err)
		}
	}
}

// Writer batch tuning, one BatchedWriter per table.
const (
	ProbeResultChannelCapacity = 2000
	ProbeResultBatchSize       = 500

	IncidentChannelCapacity = 200
	IncidentBatchSize       = 200

	AlertHistoryChannelCapacity = 50
	AlertHistoryBatchSize       = 50
)
