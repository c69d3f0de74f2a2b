package token

import "testing"

func buildBuffer() *LineBuffer {
	return &LineBuffer{
		Lines: [][]Token{
			{
				{Tag: Identifier, Range: TextRange{Point{0, 0}, Point{0, 3}}},
				{Tag: Assign, Range: TextRange{Point{0, 4}, Point{0, 5}}},
				{Tag: IntLiteral, Range: TextRange{Point{0, 6}, Point{0, 7}}},
			},
		},
	}
}

func TestTextRangeToTokenRangeRoundTrip(t *testing.T) {
	lb := buildBuffer()
	tr := TextRange{Point{0, 4}, Point{0, 7}}
	tok := lb.TextRangeToTokenRange(tr)
	if tok.Start.Index != 1 || tok.End.Index != 3 {
		t.Fatalf("unexpected token range: %+v", tok)
	}
	back := lb.TokenRangeToTextRange(tok)
	if back.Start != (Point{0, 4}) || back.End != (Point{0, 7}) {
		t.Errorf("round trip mismatch: got %+v", back)
	}
}

func TestConversionOutOfRangeLineIsTotal(t *testing.T) {
	lb := buildBuffer()
	tok := lb.TextRangeToTokenRange(TextRange{Point{5, 0}, Point{5, 1}})
	if tok.Start.Line != 5 {
		t.Errorf("expected conversion to not panic on out-of-range line, got %+v", tok)
	}
}
