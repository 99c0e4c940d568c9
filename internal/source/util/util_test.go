package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Senior Data Scientist", CleanText("  Senior Data \n\t Scientist "))
	// "é" as e + combining acute composes to the single code point.
	assert.Equal(t, "Caf\u00e9 Lead", CleanText("Cafe\u0301 Lead"))
	assert.Equal(t, "", CleanText(" \n "))
}

func TestResolveURL(t *testing.T) {
	base := "https://www.whoop.com/us/en/careers/"
	cases := map[string]string{
		"https://jobs.lever.co/whoop/123": "https://jobs.lever.co/whoop/123",
		"/us/en/careers/job/1":            "https://www.whoop.com/us/en/careers/job/1",
		"apply?id=4":                      "https://www.whoop.com/us/en/careers/apply?id=4",
		"":                                "",
		"javascript:void(0)":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ResolveURL(base, in), in)
	}
	assert.Equal(t, "/relative", ResolveURL("", "/relative"))
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 Job", Plural(1, "Job", "Jobs"))
	assert.Equal(t, "0 Jobs", Plural(0, "Job", "Jobs"))
	assert.Equal(t, "12 Jobs", Plural(12, "Job", "Jobs"))
}

func TestHostLimiter_NilIsNoop(t *testing.T) {
	var hl *HostLimiter
	assert.NoError(t, hl.WaitURL(context.Background(), "https://example.com"))
}

func TestHostLimiter_BurstThenWait(t *testing.T) {
	hl := NewHostLimiter(1000, 2)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 4; i++ {
		require.NoError(t, hl.WaitURL(ctx, "https://api.lever.co/v0/postings/whoop"))
	}
	assert.Len(t, hl.m, 1)
	require.NoError(t, hl.WaitURL(ctx, "::not a url"))
	assert.Len(t, hl.m, 2)
}

func TestPacer(t *testing.T) {
	p := Pacer(0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	assert.NotNil(t, Pacer(300*time.Millisecond))
}
