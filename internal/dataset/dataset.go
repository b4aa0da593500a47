package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

// Status is a record's pending change, as submitted in toJSONData output.
type Status string

const (
	StatusAdd    Status = "add"
	StatusUpdate Status = "update"
	StatusDelete Status = "delete"
	StatusSync   Status = "sync"
)

// Bookkeeping keys added to submitted records.
const (
	StatusKey = "__status"
	IDKey     = "__id"
)

// ErrBadResponse is returned when a load response lacks the data array.
var ErrBadResponse = errors.New("malformed dataset response")

// LoadEvent is passed to load listeners after records are replaced.
type LoadEvent struct {
	DataSet *DataSet
	Total   int
}

// QueryEvent is passed to query listeners before a read is issued.
// Params carries paging and query parameters; Data the query field values.
type QueryEvent struct {
	Params map[string]any `json:"params"`
	Data   Record         `json:"data"`
}

type row struct {
	id     int
	status Status
	data   Record
}

// DataSet mirrors the records a grid holds: it loads a page from a read
// response, tracks edits, and produces the payloads the grid would show
// (toData) or submit (toJSONData). It is not safe for concurrent use.
type DataSet struct {
	cfg     *Config
	rows    []*row
	deleted []*row
	params  map[string]any
	page    int
	total   int
	nextID  int

	onLoad  []func(LoadEvent)
	onQuery []func(QueryEvent)
}

// New returns an empty DataSet for cfg.
func New(cfg *Config) *DataSet {
	return &DataSet{cfg: cfg, params: make(map[string]any), page: 1}
}

// Config returns the dataset definition.
func (d *DataSet) Config() *Config { return d.cfg }

// OnLoad registers fn to run after every LoadResponse.
func (d *DataSet) OnLoad(fn func(LoadEvent)) { d.onLoad = append(d.onLoad, fn) }

// OnQuery registers fn to run whenever a query is prepared.
func (d *DataSet) OnQuery(fn func(QueryEvent)) { d.onQuery = append(d.onQuery, fn) }

// SetQueryParameter sets a parameter sent with every query. A nil value
// removes it.
func (d *DataSet) SetQueryParameter(key string, value any) {
	if value == nil {
		delete(d.params, key)
		return
	}
	d.params[key] = value
}

// Query prepares the read for page with the given query field values and
// fires the query listeners.
func (d *DataSet) Query(page int, data Record) QueryEvent {
	if page < 1 {
		page = 1
	}
	d.page = page

	params := maps.Clone(d.params)
	params["page"] = page
	params["size"] = d.cfg.PageSize

	ev := QueryEvent{Params: params, Data: Record{}}
	for _, f := range d.cfg.QueryFields {
		if v, ok := data[f.Name]; ok && !isBlank(v) {
			ev.Data[f.Name] = v
		}
	}
	for _, fn := range d.onQuery {
		fn(ev)
	}
	return ev
}

// ReadRequest builds the transport read request for ev against baseURL.
// Params and query data are both sent as URL query parameters.
func (d *DataSet) ReadRequest(ctx context.Context, baseURL string, ev QueryEvent) (*http.Request, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	u, err = u.Parse(d.cfg.Transport.Read.URL)
	if err != nil {
		return nil, fmt.Errorf("read url: %w", err)
	}
	q := u.Query()
	for k, v := range ev.Params {
		q.Set(k, cast.ToString(v))
	}
	for k, v := range ev.Data {
		q.Set(k, cast.ToString(v))
	}
	u.RawQuery = q.Encode()
	return http.NewRequestWithContext(ctx, d.cfg.Transport.Read.Method, u.String(), nil)
}

// Fetch runs Query, issues the read through client and loads the response.
func (d *DataSet) Fetch(ctx context.Context, client *http.Client, baseURL string, page int, data Record) error {
	req, err := d.ReadRequest(ctx, baseURL, d.Query(page, data))
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("read %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("read %s: status %d", req.URL, resp.StatusCode)
	}
	return d.LoadResponse(body)
}

// LoadResponse replaces all records with the array found under the
// dataset's dataKey and fires the load listeners. Pending edits and
// deletions are discarded.
func (d *DataSet) LoadResponse(body []byte) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("%w: invalid JSON", ErrBadResponse)
	}
	list := gjson.GetBytes(body, d.cfg.DataKey)
	if !list.IsArray() {
		return fmt.Errorf("%w: %q is not an array", ErrBadResponse, d.cfg.DataKey)
	}

	var rows []*row
	var decodeErr error
	list.ForEach(func(_, item gjson.Result) bool {
		var rec Record
		if err := json.Unmarshal([]byte(item.Raw), &rec); err != nil {
			decodeErr = fmt.Errorf("%w: record %d: %v", ErrBadResponse, len(rows), err)
			return false
		}
		rows = append(rows, d.newRow(StatusSync, rec))
		return true
	})
	if decodeErr != nil {
		return decodeErr
	}

	d.rows = rows
	d.deleted = nil
	d.total = len(rows)
	if t := gjson.GetBytes(body, "totalElements"); t.Exists() {
		d.total = int(t.Int())
	}
	for _, fn := range d.onLoad {
		fn(LoadEvent{DataSet: d, Total: d.total})
	}
	return nil
}

func (d *DataSet) newRow(status Status, rec Record) *row {
	d.nextID++
	if rec == nil {
		rec = Record{}
	}
	delete(rec, StatusKey)
	delete(rec, IDKey)
	return &row{id: d.nextID, status: status, data: rec}
}

// Len reports the number of visible records.
func (d *DataSet) Len() int { return len(d.rows) }

// Total reports totalElements from the last load.
func (d *DataSet) Total() int { return d.total }

// Page reports the page last queried.
func (d *DataSet) Page() int { return d.page }

// Create appends a new record, returning its index.
func (d *DataSet) Create(data Record) int {
	d.rows = append(d.rows, d.newRow(StatusAdd, data.Clone()))
	return len(d.rows) - 1
}

// Set updates one field of the record at index i.
func (d *DataSet) Set(i int, field string, value any) error {
	r, err := d.at(i)
	if err != nil {
		return err
	}
	r.data[field] = value
	if r.status == StatusSync {
		r.status = StatusUpdate
	}
	return nil
}

// Remove deletes the record at index i. Records never submitted vanish;
// loaded records are kept for submission with status delete.
func (d *DataSet) Remove(i int) error {
	r, err := d.at(i)
	if err != nil {
		return err
	}
	d.rows = append(d.rows[:i], d.rows[i+1:]...)
	if r.status != StatusAdd {
		r.status = StatusDelete
		d.deleted = append(d.deleted, r)
	}
	return nil
}

// Get returns a copy of the record at index i.
func (d *DataSet) Get(i int) (Record, Status, error) {
	r, err := d.at(i)
	if err != nil {
		return nil, "", err
	}
	return r.data.Clone(), r.status, nil
}

func (d *DataSet) at(i int) (*row, error) {
	if i < 0 || i >= len(d.rows) {
		return nil, fmt.Errorf("record index %d out of range [0,%d)", i, len(d.rows))
	}
	return d.rows[i], nil
}

// ToData returns copies of all visible records without bookkeeping keys.
func (d *DataSet) ToData() []Record {
	out := make([]Record, 0, len(d.rows))
	for _, r := range d.rows {
		out = append(out, r.data.Clone())
	}
	return out
}

// ToJSONData returns the records to submit, each tagged with __status and
// __id. With dataToJSON "all" unchanged records are included as sync;
// otherwise only added and updated ones. Deletions always follow.
func (d *DataSet) ToJSONData() []Record {
	out := make([]Record, 0, len(d.rows)+len(d.deleted))
	for _, r := range d.rows {
		if r.status == StatusSync && d.cfg.DataToJSON != SubmitAll {
			continue
		}
		out = append(out, r.tagged())
	}
	for _, r := range d.deleted {
		out = append(out, r.tagged())
	}
	return out
}

// Dirty reports whether any record has a pending change.
func (d *DataSet) Dirty() bool {
	if len(d.deleted) > 0 {
		return true
	}
	for _, r := range d.rows {
		if r.status != StatusSync {
			return true
		}
	}
	return false
}

// Validate checks all pending records as ToJSONData would submit them.
func (d *DataSet) Validate() ValidationErrors {
	return d.cfg.ValidateAll(d.ToJSONData())
}

func (r *row) tagged() Record {
	rec := r.data.Clone()
	rec[StatusKey] = string(r.status)
	rec[IDKey] = r.id
	return rec
}
