package dbf

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/dyuri/shpimport/internal/binary"
	"github.com/dyuri/shpimport/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func buildTable(t *testing.T, ldid byte, fields []Field, rows ...[]model.Value) []byte {
	t.Helper()
	w, err := NewWriter(fields)
	require.NoError(t, err)
	w.SetLanguageDriver(ldid)
	for _, row := range rows {
		require.NoError(t, w.AddRow(row...))
	}
	var buf bytes.Buffer
	_, err = w.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

var testFields = []Field{
	{Name: "NAME", Type: 'C', Length: 12},
	{Name: "COLOR", Type: 'N', Length: 8},
	{Name: "WIDTH", Type: 'N', Length: 8, Decimals: 2},
	{Name: "BUILT", Type: 'D', Length: 8},
	{Name: "ACTIVE", Type: 'L', Length: 1},
}

func TestReaderDecodesTypedFields(t *testing.T) {
	built := time.Date(2019, 6, 30, 0, 0, 0, 0, time.UTC)
	data := buildTable(t, 0, testFields,
		[]model.Value{
			model.TextValue("Main St"),
			model.IntValue(3),
			model.FloatValue(0.35),
			model.DateValue(built),
			model.BoolValue(true),
		},
		[]model.Value{model.TextValue("Side")},
	)

	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, r.Fields(), 5)
	assert.Equal(t, 2, r.NumRecords())
	assert.Equal(t, byte('N'), r.Fields()[1].Type)

	row, deleted, err := r.Row(0)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, []string{"NAME", "COLOR", "WIDTH", "BUILT", "ACTIVE"}, row.Names())

	v, ok := row.Get("NAME")
	require.True(t, ok)
	assert.Equal(t, model.TextValue("Main St"), v)

	v, _ = row.Get("COLOR")
	assert.Equal(t, model.IntValue(3), v)

	v, _ = row.Get("width")
	assert.Equal(t, model.KindFloat, v.Kind)
	assert.InDelta(t, 0.35, v.Float, 1e-9)

	v, _ = row.Get("BUILT")
	assert.True(t, built.Equal(v.Date))

	v, _ = row.Get("ACTIVE")
	assert.Equal(t, model.BoolValue(true), v)

	row, _, err = r.Row(1)
	require.NoError(t, err)
	v, _ = row.Get("COLOR")
	assert.True(t, v.IsNull())
	v, _ = row.Get("ACTIVE")
	assert.True(t, v.IsNull())
}

func TestReaderNextAndBounds(t *testing.T) {
	data := buildTable(t, 0, testFields[:1],
		[]model.Value{model.TextValue("a")},
		[]model.Value{model.TextValue("b")},
	)
	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var names []string
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		v, _ := row.Get("NAME")
		names = append(names, v.Text)
	}
	assert.Equal(t, []string{"a", "b"}, names)

	_, _, err = r.Row(2)
	assert.Error(t, err)
}

func TestReaderNumericFieldWithText(t *testing.T) {
	data := buildTable(t, 0, testFields[1:2], []model.Value{model.TextValue("wide")})
	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	row, _, err := r.Row(0)
	require.NoError(t, err)
	v, _ := row.Get("COLOR")
	assert.Equal(t, model.TextValue("wide"), v)
}

func TestReaderLanguageDriver(t *testing.T) {
	// 0xC9 is Windows-1251
	name, err := charmap.Windows1251.NewEncoder().String("Улица")
	require.NoError(t, err)
	data := buildTable(t, 0xC9, testFields[:1], []model.Value{model.TextValue(name)})

	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	row, _, err := r.Row(0)
	require.NoError(t, err)
	v, _ := row.Get("NAME")
	assert.Equal(t, "Улица", v.Text)
}

func TestReaderEncodingOverride(t *testing.T) {
	name, err := charmap.ISO8859_2.NewEncoder().String("Łódź")
	require.NoError(t, err)
	data := buildTable(t, 0x03, testFields[:1], []model.Value{model.TextValue(name)})

	enc, err := EncodingByName("88592")
	require.NoError(t, err)
	r, err := NewReader(bytes.NewReader(data), int64(len(data)), WithEncoding(enc))
	require.NoError(t, err)
	row, _, err := r.Row(0)
	require.NoError(t, err)
	v, _ := row.Get("NAME")
	assert.Equal(t, "Łódź", v.Text)
}

func TestReaderTruncated(t *testing.T) {
	data := buildTable(t, 0, testFields, []model.Value{model.TextValue("x")})

	_, err := NewReader(bytes.NewReader(data[:20]), 20)
	assert.True(t, errors.Is(err, binary.ErrTruncatedInput), "got %v", err)

	// Header and descriptors intact, record cut short
	short := data[:len(data)-20]
	r, err := NewReader(bytes.NewReader(short), int64(len(short)))
	require.NoError(t, err)
	_, _, err = r.Row(0)
	assert.True(t, errors.Is(err, binary.ErrTruncatedInput), "got %v", err)
}

func TestReaderBadHeader(t *testing.T) {
	data := buildTable(t, 0, testFields[:1])
	data[10], data[11] = 0, 0 // record length

	_, err := NewReader(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrBadTable)
}

func TestEncodingByName(t *testing.T) {
	for _, name := range []string{"UTF-8", "1252", "88591", "ISO-8859-15", "866", "936"} {
		enc, err := EncodingByName(name)
		assert.NoError(t, err, name)
		assert.NotNil(t, enc, name)
	}
	_, err := EncodingByName("no-such-charset")
	assert.Error(t, err)
}
