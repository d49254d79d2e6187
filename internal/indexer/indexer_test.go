// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/searchbrr/internal/domain"
	"github.com/autobrr/searchbrr/internal/native"
)

func trackerDefinition(baseURL string) string {
	return fmt.Sprintf(`---
id: tracker
name: Tracker
description: test definition
language: en-US
type: public
links:
  - %s
caps:
  categorymappings:
    - {id: 41, cat: Movies/HD, desc: Movies HD}
  modes:
    search: [q]
search:
  paths:
    - path: /browse
  inputs:
    q: "{{ .Query.Keywords }}"
  rows:
    selector: table tr.release
  fields:
    title:
      selector: td.name a
    download:
      selector: td.dl a
      attribute: href
`, baseURL)
}

func TestNativeIndexerSearch_PreflightVisitsBaseOnce(t *testing.T) {
	t.Parallel()

	var rootHits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			rootHits.Add(1)
			w.WriteHeader(http.StatusOK)
			return
		}
		_, _ = w.Write([]byte(`<html><body><table>
			<tr class="release">
				<td class="name"><a href="/details/1">Ubuntu 24.04 ISO</a></td>
				<td class="dl"><a href="/download/1">get</a></td>
			</tr>
		</table></body></html>`))
	}))
	t.Cleanup(server.Close)

	def, err := native.ParseDefinition([]byte(trackerDefinition(server.URL)))
	require.NoError(t, err)

	executor, err := native.NewExecutor("", zerolog.Nop())
	require.NoError(t, err)

	idx := NewNativeIndexer(def, executor, nil, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// Distinct queries so nothing upstream collapses them.
			results, err := idx.Search(t.Context(), domain.TextSearch(fmt.Sprintf("ubuntu %d", n)))
			assert.NoError(t, err)
			assert.Len(t, results, 1)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), rootHits.Load())
}
