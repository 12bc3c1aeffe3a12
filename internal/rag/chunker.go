// Package rag provides document segmentation for the knowledge index.
package rag

import (
	"strings"
	"unicode"
)

const (
	// DefaultChunkSize - 문서 ingest 기본 chunk 크기 (rune 단위)
	DefaultChunkSize = 512

	// DefaultChunkOverlap - 인접 chunk 간 겹치는 길이
	DefaultChunkOverlap = 50

	// 경계 탐색 구간: 윈도우 끝에서 20% 이내
	boundaryFraction = 0.8
)

// Chunk splits text into overlapping segments of at most chunkSize runes.
//
// Each window is cut after the last sentence terminator (. ! ? newline)
// inside its final 20%, otherwise after the last whitespace in that region,
// otherwise exactly at chunkSize. The next window starts overlap runes
// before the previous end, or at the previous end when that would not move
// past the previous start. Whitespace-only chunks are dropped.
//
// overlap must be in [0, chunkSize); an invalid value is treated as 0.
func Chunk(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	if chunkSize <= 0 || len(runes) <= chunkSize {
		return []string{text}
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	n := len(runes)
	var chunks []string
	start := 0
	for start < n {
		end := start + chunkSize
		if end >= n {
			end = n
		} else {
			end = cutPoint(runes, start, end, chunkSize)
		}

		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			chunks = append(chunks, piece)
		}
		if end >= n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// cutPoint - [start, end) 윈도우의 마지막 20% 안에서 자를 위치를 찾음
// 반환값은 항상 start보다 큼
func cutPoint(runes []rune, start, end, chunkSize int) int {
	floor := start + int(float64(chunkSize)*boundaryFraction)
	if floor <= start {
		floor = start
	}

	for i := end - 1; i >= floor; i-- {
		if isSentenceEnd(runes[i]) {
			return i + 1
		}
	}
	for i := end - 1; i >= floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}
