package bot

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ===========================================================================
// Trigger matching
// So khớp text inbound với trigger spec của bot
// Trigger spec là danh sách alternatives phân cách bằng dấu chấm phẩy
// ===========================================================================

// stripMarks transform chain: NFD decompose rồi bỏ combining marks
// Dùng để so khớp không phân biệt dấu ("olá" == "ola")
var stripMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize chuẩn hóa text để fuzzy matching:
// bỏ dấu, lowercase, bỏ ký tự ngoài [a-z0-9 -], trim
func Normalize(text string) string {
	stripped, _, err := transform.String(stripMarks, text)
	if err != nil {
		stripped = text
	}

	lowered := strings.ToLower(stripped)

	var sb strings.Builder
	sb.Grow(len(lowered))
	for _, r := range lowered {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' {
			sb.WriteRune(r)
		}
	}

	return strings.TrimSpace(sb.String())
}

// MatchTrigger tìm alternative đầu tiên trong triggerSpec khớp với text
// Trả về alternative khớp và true, hoặc "" và false
//
// threshold == 0: so sánh exact trên text đã trim (không normalize)
// threshold > 0: so sánh fuzzy trên text đã normalize; khớp khi
// levenshtein distance chia cho độ dài chuỗi dài hơn <= threshold
// (threshold thấp = khắt khe hơn)
//
// Alternative rỗng khớp với mọi text (catch-all, hành vi có chủ đích)
func MatchTrigger(text, triggerSpec string, threshold float64) (string, bool) {
	trimmed := strings.TrimSpace(text)
	normalized := Normalize(text)

	for _, alt := range strings.Split(triggerSpec, ";") {
		alt = strings.TrimSpace(alt)

		if alt == "" {
			return alt, true
		}

		if threshold <= 0 {
			if trimmed == alt {
				return alt, true
			}
			continue
		}

		if fuzzyMatch(normalized, Normalize(alt), threshold) {
			return alt, true
		}
	}

	return "", false
}

// fuzzyMatch so khớp xấp xỉ hai chuỗi đã normalize
func fuzzyMatch(a, b string, threshold float64) bool {
	if b == "" {
		return true
	}
	if a == b {
		return true
	}

	longer := len([]rune(a))
	if lb := len([]rune(b)); lb > longer {
		longer = lb
	}
	if longer == 0 {
		return true
	}

	distance := levenshtein.ComputeDistance(a, b)
	return float64(distance)/float64(longer) <= threshold
}
