// Package label 파일 이름에서 나이/성별 레이블을 추출
//
// 파일 이름 형식: <age>_<gender>_<...>.<ext>
package label

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/harrison-roh/age-gender-estimation-with-transfer-learning/agapp/constants"
)

// Gender 성별 레이블 (0 또는 1)
type Gender int

const (
	Female Gender = 0
	Male   Gender = 1
)

func (g Gender) String() string {
	if g == Male {
		return "Male"
	}
	return "Female"
}

// Label 파일 이름에서 추출한 레이블
type Label struct {
	Age    int
	Gender Gender
}

// ParseError 레이블 추출 실패
type ParseError struct {
	Filename string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Cannot extract labels from filename: %s: %s", e.Filename, e.Reason)
}

// Extract 파일 이름에서 나이와 성별을 추출
func Extract(filename string) (Label, error) {
	name := filepath.Base(filename)
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return Label{}, &ParseError{Filename: name, Reason: "missing gender segment"}
	}

	age, err := strconv.Atoi(parts[0])
	if err != nil {
		return Label{}, &ParseError{Filename: name, Reason: fmt.Sprintf("invalid age %q", parts[0])}
	}
	if age < 0 {
		return Label{}, &ParseError{Filename: name, Reason: fmt.Sprintf("negative age %d", age)}
	}

	// "30_1.jpg" 처럼 두번째 토큰이 마지막이면 확장자 제거
	g := parts[1]
	if len(parts) == 2 {
		g = strings.TrimSuffix(g, filepath.Ext(g))
	}

	gender, err := strconv.Atoi(g)
	if err != nil {
		return Label{}, &ParseError{Filename: name, Reason: fmt.Sprintf("invalid gender %q", g)}
	}
	if gender != int(Female) && gender != int(Male) {
		return Label{}, &ParseError{Filename: name, Reason: fmt.Sprintf("gender out of range %d", gender)}
	}

	return Label{Age: age, Gender: Gender(gender)}, nil
}

// IsImage 평가 대상 이미지 확장자 여부 (대소문자 무시)
func IsImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	ext = ext[1:]

	for _, format := range constants.ImageFormats {
		if ext == format {
			return true
		}
	}

	return false
}

// Format 이미지 확장자 반환 (소문자, "." 제외)
func Format(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ""
	}
	return ext[1:]
}
