package catalog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/sermon-harvester/internal/sermon"
)

func sample() []sermon.Record {
	return []sermon.Record{
		{
			Title: "The Vine", Teacher: "Jane Doe", Text: "John 15:1-8", Topics: "Fruit; Prayer",
			Date: time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC), Source: "grace.example",
			Page: "https://grace.example/s/1", Audio: "https://cdn.example/1.mp3",
			Name: "2024-03-03 - John 15_1-8 - The Vine - Jane Doe", Extra: "Series: Abide",
		},
		{Title: "Notes only, no audio", Source: "grace.example", Page: "https://grace.example/s/2", Name: "Notes only, no audio"},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample()))
	assert.True(t, strings.HasPrefix(buf.String(), strings.Join(Columns, ",")+"\n"))

	got, err := Read(&buf, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, sample(), got)
}

func TestReadAcceptsMinistryAliasAndExtraColumns(t *testing.T) {
	t.Parallel()

	in := "Title,Teacher,Ministry,Audio,Name,Duration\n" +
		"Hope,A,Youth,https://x.test/a.mp3,Hope - A,45:00\n"
	got, err := Read(strings.NewReader(in), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Youth", got[0].Topics)
	assert.Equal(t, "Hope - A", got[0].Name)
	assert.True(t, got[0].Date.IsZero())
}

func TestReadTreatsMissingMarkersAsEmpty(t *testing.T) {
	t.Parallel()

	in := "Title,Teacher,Text,Topics,Date,Source,Page,Audio,Files,Name,Extra\n" +
		"Hope,NA,N/A,none,NA,grace.example,https://grace.example/s/1,NA,NA,Hope,NA\n" +
		"Joy,B,,,not a date,grace.example,https://grace.example/s/2,https://x.test/j.mp3,,Joy - B,\n" +
		"Peace,C,,,2024-01-07,grace.example,https://grace.example/s/3,https://x.test/p.mp3,,2024-01-07 - Peace - C,\n"
	core, logs := observer.New(zapcore.WarnLevel)

	got, err := Read(strings.NewReader(in), zap.New(core))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, sermon.Record{
		Title: "Hope", Source: "grace.example", Page: "https://grace.example/s/1", Name: "Hope",
	}, got[0])
	assert.False(t, got[0].HasAudio())

	assert.True(t, got[1].Date.IsZero())
	assert.True(t, got[1].HasAudio())
	assert.Equal(t, time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC), got[2].Date)

	warnings := logs.FilterMessage("catalog date unreadable, leaving it empty").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "not a date", warnings[0].ContextMap()["date"])
	assert.Equal(t, sermon.Table{Records: got}.WithAudio(), got[1:])
}

func TestReadMissingRequiredColumn(t *testing.T) {
	t.Parallel()

	_, err := Read(strings.NewReader("Title,Teacher\nHope,A\n"), nil)
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadEmpty(t *testing.T) {
	t.Parallel()

	got, err := Read(strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "grace.csv")
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample()))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	got, err := ReadFile(path, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"), nil)
	require.Error(t, err)
}

func TestFileName(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, time.March, 3, 14, 5, 9, 0, time.FixedZone("EST", -5*3600))
	assert.Equal(t, "grace.example_20240303T190509Z.csv", FileName("grace.example", at))
}

func TestDistinctCompile(t *testing.T) {
	t.Parallel()

	a := sample()
	b := append([]sermon.Record{{Title: "New", Page: "https://grace.example/s/3"}}, sample()[0])
	got := Distinct{}.Compile(a, b)
	require.Len(t, got, 3)
	assert.Equal(t, "The Vine", got[0].Title)
	assert.Equal(t, "New", got[2].Title)

	changed := sample()[0]
	changed.Topics = "Fruit"
	assert.Len(t, Distinct{}.Compile(a, []sermon.Record{changed}), 3)
}
