package extract

import (
	"strings"
)

// MaxLineLength drops lines longer than this, except definition-list values.
const MaxLineLength = 300

// MaxBullets caps the bullet lines rendered per section.
const MaxBullets = 20

// DefaultSection collects content seen before any recognised header.
const DefaultSection = "상세내용"

type sectionDef struct {
	name    string
	aliases []string
}

// vocabulary maps header spellings seen on postings to a canonical section.
// Order decides precedence when a line could match several aliases.
var vocabulary = []sectionDef{
	{"모집요강", []string{"모집요강", "모집부문", "모집분야", "채용분야", "모집내용", "채용부문"}},
	{"주요업무", []string{"주요업무", "담당업무", "업무내용", "하는일", "직무내용"}},
	{"지원자격", []string{"지원자격", "자격요건", "필수요건", "필수사항", "자격조건"}},
	{"우대사항", []string{"우대사항", "우대조건", "우대요건"}},
	{"근무조건", []string{"근무조건", "근무환경", "근무형태", "근무시간", "근무지", "근무지역", "급여조건"}},
	{"혜택 및 복지", []string{"혜택및복지", "복리후생", "복지혜택", "복지제도", "복지"}},
	{"채용 프로세스", []string{"채용프로세스", "채용절차", "전형절차", "전형방법", "채용과정"}},
	{"접수기간", []string{"접수기간", "접수방법", "지원방법", "제출서류", "마감일"}},
	{"기업 정보", []string{"기업정보", "회사소개", "기업소개"}},
	{"기타사항", []string{"기타사항", "참고사항", "유의사항", "기타"}},
}

// blacklist holds UI and site boilerplate that is never posting content.
var blacklist = []string{
	"로그인", "회원가입", "즉시지원", "공고등록", "스크랩", "공유하기", "인쇄하기",
	"목록으로", "이전공고", "다음공고", "신고하기", "맨위로", "관심기업",
	"홈페이지 지원", "JOBKOREA", "잡코리아", "알바몬",
}

// headerDecor is stripped from a candidate header before matching.
const headerDecor = "■□●○◎◆◇▶▷►▣※★☆•·-*#[]【】()「」<>:|/ "

func compact(s string) string {
	s = Normalize(s)
	s = strings.Trim(s, headerDecor)
	return strings.ReplaceAll(s, " ", "")
}

// MatchSection reports the canonical section a header line names. A line
// matches exactly, or nearly: it contains an alias and is at most a few
// characters longer than it.
func MatchSection(line string) (string, bool) {
	c := compact(line)
	if c == "" {
		return "", false
	}

	for _, def := range vocabulary {
		for _, alias := range def.aliases {
			if c == alias {
				return def.name, true
			}
		}
	}
	for _, def := range vocabulary {
		for _, alias := range def.aliases {
			if len([]rune(alias)) < 4 {
				continue
			}
			if strings.Contains(c, alias) && len([]rune(c)) <= len([]rune(alias))+4 {
				return def.name, true
			}
		}
	}
	return "", false
}

// SplitInlineHeader splits "주요업무: 백엔드 개발" into its section and
// the remaining content.
func SplitInlineHeader(line string) (section, rest string, ok bool) {
	idx := strings.IndexAny(line, ":：")
	if idx <= 0 {
		return "", "", false
	}
	name, found := MatchSection(line[:idx])
	if !found {
		return "", "", false
	}
	_, size := firstRune(line[idx:])
	return name, strings.TrimSpace(line[idx+size:]), true
}

func firstRune(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 0
}

// keepLine reports whether a content line survives the boilerplate filters.
func keepLine(line string, allowLong bool) bool {
	if line == "" {
		return false
	}
	if !allowLong && len([]rune(line)) > MaxLineLength {
		return false
	}
	if isNoiseOnly(line) {
		return false
	}
	for _, phrase := range blacklist {
		if strings.Contains(line, phrase) {
			return false
		}
	}
	return true
}

// trimBullet strips leading list markers.
func trimBullet(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "-•·*▪◦ㆍ○●■□◆◇▶▷※ \t"))
}
