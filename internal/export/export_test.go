package export

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/usergrid/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sample() Table {
	records := []dataset.Record{
		{"name": "王小明", "age": 28, "email": "xiaoming@qq.com"},
		{"name": "Bob", "active": false},
	}
	return FromRecords(records, []string{"name", "age", "email", "active"},
		map[string]string{"name": "姓名", "age": "年龄", "email": "邮箱"})
}

func TestFromRecords(t *testing.T) {
	tbl := sample()
	assert.Equal(t, []string{"姓名", "年龄", "邮箱", "active"}, tbl.Headers)
	assert.Equal(t, [][]any{
		{"王小明", 28, "xiaoming@qq.com", ""},
		{"Bob", "", "", false},
	}, tbl.Rows)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))

	out := strings.TrimPrefix(buf.String(), "\ufeff")
	assert.Equal(t, "姓名,年龄,邮箱,active\n王小明,28,xiaoming@qq.com,\nBob,,,false\n", out)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sample(), "user"))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"user"}, f.GetSheetList())
	rows, err := f.GetRows("user")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"姓名", "年龄", "邮箱", "active"}, rows[0])
	assert.Equal(t, "王小明", rows[1][0])
	assert.Equal(t, "28", rows[1][1])
}

func TestServe(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, Serve(rec, CSV, sample(), "user"))

	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=user.csv", rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "王小明")
}
