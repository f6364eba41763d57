// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// fakeStore returns fixed chunks and records the last query.
type fakeStore struct {
	chunks []types.Chunk
	err    error
	delay  time.Duration
	block  bool
	query  string
	k      int
}

func (f *fakeStore) Search(ctx context.Context, query string, k int) ([]types.Chunk, error) {
	f.query, f.k = query, k
	if f.block {
		time.Sleep(time.Second) // ignores ctx
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.chunks, f.err
}

func chunk(id string, score float64) types.Chunk {
	return types.Chunk{ID: id, DocumentID: "doc-" + id, DocumentTitle: "Doc " + id, PageNumber: 1, Text: "text " + id, Score: score}
}

var descSpec = types.SectionSpec{
	Name:        "Project Description",
	Required:    true,
	WordLimit:   types.IntPtr(500),
	Requirement: "Describe goals and community need.",
}

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, "Project Description Describe goals and community need. requirements for 500 word section", BuildQuery(descSpec))
	assert.Equal(t, "Budget", BuildQuery(types.SectionSpec{Name: "Budget"}))
}

func TestRetrieve_SingleStrongChunk(t *testing.T) {
	store := &fakeStore{chunks: []types.Chunk{chunk("a", 0.85)}}
	res := New(store, types.RetrievalConfig{}, nil).Retrieve(context.Background(), descSpec)

	require.Len(t, res.Citations, 1)
	assert.Equal(t, "Doc a", res.Citations[0].DocumentTitle)
	assert.Equal(t, 0.85, res.Citations[0].RelevanceScore)
	assert.Nil(t, res.Gap)
	assert.NoError(t, res.Err)
	assert.Equal(t, 5, store.k)
	assert.Contains(t, store.query, "Project Description")
}

func TestRetrieve_FiltersAndOrders(t *testing.T) {
	store := &fakeStore{chunks: []types.Chunk{
		chunk("low", 0.2), chunk("b", 0.6), chunk("c", 0.9), chunk("d", 0.6), chunk("edge", 0.3),
	}}
	res := New(store, types.RetrievalConfig{}, nil).Retrieve(context.Background(), descSpec)

	var ids []string
	for _, c := range res.Citations {
		ids = append(ids, c.ChunkID)
	}
	assert.Equal(t, []string{"c", "b", "d", "edge"}, ids)
	assert.Nil(t, res.Gap)
}

func TestRetrieve_NoGrounding(t *testing.T) {
	store := &fakeStore{chunks: []types.Chunk{chunk("a", 0.29), chunk("b", 0.1)}}
	res := New(store, types.RetrievalConfig{}, nil).Retrieve(context.Background(), descSpec)

	assert.Empty(t, res.Citations)
	require.NotNil(t, res.Gap)
	assert.Equal(t, types.GapNoGrounding, res.Gap.Reason)
	assert.Equal(t, "Project Description", res.Gap.SectionName)
	assert.Equal(t, "Describe goals and community need.", res.Gap.UnmetRequirement)
}

func TestRetrieve_LowConfidence(t *testing.T) {
	store := &fakeStore{chunks: []types.Chunk{chunk("a", 0.45), chunk("b", 0.31)}}
	res := New(store, types.RetrievalConfig{}, nil).Retrieve(context.Background(), descSpec)

	assert.Len(t, res.Citations, 2)
	require.NotNil(t, res.Gap)
	assert.Equal(t, types.GapLowConfidence, res.Gap.Reason)
}

func TestRetrieve_StoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("index unavailable")}
	res := New(store, types.RetrievalConfig{}, nil).Retrieve(context.Background(), descSpec)

	assert.Empty(t, res.Citations)
	require.NotNil(t, res.Gap)
	assert.Equal(t, types.GapNoGrounding, res.Gap.Reason)
	assert.Contains(t, res.Gap.Detail, "index unavailable")
}

func TestRetrieve_TimeoutIsNotFatal(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
	}{
		{name: "store honours context", store: &fakeStore{delay: time.Second}},
		{name: "store ignores context", store: &fakeStore{block: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.store, types.RetrievalConfig{SearchTimeout: 20 * time.Millisecond}, nil)

			start := time.Now()
			res := r.Retrieve(context.Background(), descSpec)

			assert.Less(t, time.Since(start), 500*time.Millisecond)
			assert.ErrorIs(t, res.Err, ErrRetrievalTimeout)
			assert.Empty(t, res.Citations)
			require.NotNil(t, res.Gap)
			assert.Equal(t, types.GapNoGrounding, res.Gap.Reason)
		})
	}
}

func TestRetrieve_SnippetTruncated(t *testing.T) {
	long := chunk("a", 0.9)
	long.Text = "abcdefghij"
	store := &fakeStore{chunks: []types.Chunk{long}}
	res := New(store, types.RetrievalConfig{SnippetChars: 4}, nil).Retrieve(context.Background(), descSpec)
	assert.Equal(t, "abcd...", res.Citations[0].Snippet)
}
