package sermon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJoinListSkipsBlanks(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "A; B", JoinList(" A ", "", "B", "   "))
	assert.Equal(t, "", JoinList())
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"Grace", "Faith"}, SplitList("Grace; Faith;"))
	assert.Nil(t, SplitList("  "))
}

func TestTableWithAudio(t *testing.T) {
	t.Parallel()

	table := Table{Records: []Record{
		{Title: "one", Audio: "https://x.test/1.mp3"},
		{Title: "two"},
		{Title: "three", Audio: "https://x.test/3.mp3"},
	}}
	got := table.WithAudio()
	assert.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Title)
	assert.Equal(t, "three", got[1].Title)
}

func TestDateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Record{}.DateString())
	rec := Record{Date: time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "2024-03-03", rec.DateString())
}
