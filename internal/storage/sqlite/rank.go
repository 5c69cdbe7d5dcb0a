package sqlite

import "encoding/binary"

// Column weights for articles_fts(title, summary, body, keywords).
var columnWeights = []float64{3, 1.5, 1, 2}

// textRank scores a row from matchinfo(articles_fts, 'pcx'). For every phrase
// and column it adds weight * hits-in-row / hits-in-all-rows, so rare terms
// and title hits count for more.
func textRank(matchinfo []byte) float64 {
	if len(matchinfo) < 8 {
		return 0
	}

	ints := make([]uint32, len(matchinfo)/4)
	for i := range ints {
		ints[i] = binary.NativeEndian.Uint32(matchinfo[i*4:])
	}

	phrases, cols := int(ints[0]), int(ints[1])
	if len(ints) < 2+3*phrases*cols {
		return 0
	}

	var score float64
	for p := 0; p < phrases; p++ {
		for col := 0; col < cols; col++ {
			base := 2 + 3*(p*cols+col)
			hitsRow, hitsAll := ints[base], ints[base+1]
			if hitsRow == 0 || hitsAll == 0 {
				continue
			}
			weight := 1.0
			if col < len(columnWeights) {
				weight = columnWeights[col]
			}
			score += weight * float64(hitsRow) / float64(hitsAll)
		}
	}
	return score
}
