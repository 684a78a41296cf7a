package csv

import (
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	tests := []struct {
		Input string
		Comma byte
		Want  [][]string
	}{
		{
			Input: "name,age\nfoo,42\n",
			Comma: ',',
			Want:  [][]string{{"name", "age"}, {"foo", "42"}},
		},
		{
			Input: "a;b;\r\n;;c",
			Comma: ';',
			Want:  [][]string{{"a", "b", ""}, {"", "", "c"}},
		},
		{
			Input: "\"foo, bar\",\"say \"\"hi\"\"\"\n",
			Comma: ',',
			Want:  [][]string{{"foo, bar", "say \"hi\""}},
		},
		{
			Input: "\"multi\nline\",x\n",
			Comma: ',',
			Want:  [][]string{{"multi\nline", "x"}},
		},
		{
			Input: "\xEF\xBB\xBFid\n1\n",
			Comma: ',',
			Want:  [][]string{{"id"}, {"1"}},
		},
	}
	for _, c := range tests {
		r := NewReader(strings.NewReader(c.Input))
		r.Comma = c.Comma
		got, err := r.ReadAll()
		require.NoError(t, err, c.Input)
		assert.Equal(t, c.Want, got, c.Input)
	}
}

func TestReaderInvalid(t *testing.T) {
	tests := []string{
		"foo\"bar,1\n",
		"\"unterminated,1\n",
		"\"foo\"bar,1\n",
	}
	for _, str := range tests {
		r := NewReader(strings.NewReader(str))
		_, err := r.ReadAll()
		assert.Error(t, err, str)
	}
}

func TestReaderFieldsPerLine(t *testing.T) {
	r := NewReader(strings.NewReader("a,b\nc\n"))
	r.FieldsPerLine = 2

	rec, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rec)

	_, err = r.Read()
	assert.ErrorIs(t, err, ErrFields)
}

func TestRecords(t *testing.T) {
	r := NewReader(strings.NewReader("1,2\n3,4\n"))
	var got [][]string
	for rec, err := range Records(r) {
		require.NoError(t, err)
		got = append(got, rec)
	}
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, got)

	_, err := r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSniff(t *testing.T) {
	tests := []struct {
		Input string
		Want  byte
	}{
		{Input: "a,b,c\n", Want: ','},
		{Input: "a;b;c\n1,5;2,5;3\n", Want: ';'},
		{Input: "a\tb\n", Want: '\t'},
		{Input: "\"x;y\",b,c\n", Want: ','},
		{Input: "single\n", Want: ','},
	}
	for _, c := range tests {
		got, rs := Sniff(strings.NewReader(c.Input))
		assert.Equal(t, c.Want, got, c.Input)

		all, err := io.ReadAll(rs)
		require.NoError(t, err)
		assert.Equal(t, c.Input, string(all))
	}
}

func TestWriter(t *testing.T) {
	var (
		str strings.Builder
		ws  = NewWriter(&str)
	)
	err := ws.WriteAll([][]string{
		{"name", "note"},
		{"foo", "a,b"},
		{"bar", "say \"hi\""},
		{"", " lead"},
	})
	require.NoError(t, err)

	want := "name,note\nfoo,\"a,b\"\nbar,\"say \"\"hi\"\"\"\n,\" lead\"\n"
	assert.Equal(t, want, str.String())

	r := NewReader(strings.NewReader(str.String()))
	got, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "say \"hi\""}, got[2])
}

func TestWriterOptions(t *testing.T) {
	t.Run("crlf", func(t *testing.T) {
		var (
			str strings.Builder
			ws  = NewWriter(&str)
		)
		ws.UseCRLF = true
		ws.Comma = ';'
		require.NoError(t, ws.WriteAll([][]string{
			{"a;b", "multi\nline", "win\r\nline"},
		}))
		assert.Equal(t, "\"a;b\";\"multi\r\nline\";\"win\r\nline\"\r\n", str.String())
	})
	t.Run("force", func(t *testing.T) {
		var (
			str strings.Builder
			ws  = NewWriter(&str)
		)
		ws.ForceQuote = true
		records := [][]string{{"x", ""}, {"1", "2"}}
		require.NoError(t, ws.WriteRecords(slices.Values(records)))
		assert.Equal(t, "\"x\",\"\"\n\"1\",\"2\"\n", str.String())
	})
}

type failWriter struct{}

var errWrite = errors.New("write failed")

func (failWriter) Write([]byte) (int, error) {
	return 0, errWrite
}

func TestWriterError(t *testing.T) {
	ws := NewWriter(failWriter{})
	require.NoError(t, ws.Write([]string{"a", "b"}))
	assert.ErrorIs(t, ws.Flush(), errWrite)
	assert.ErrorIs(t, ws.Write([]string{"c"}), errWrite)
	assert.ErrorIs(t, ws.Error(), errWrite)
}
