package moderation

import (
	"strings"

	apperr "github.com/sujalbistaa/slidont/internal/errors"
	"github.com/sujalbistaa/slidont/internal/models"
)

// FlagThreshold is the flag count at which an item is hidden from public feeds.
const FlagThreshold = 3

// Kind configures a moderated collection: its tables and optional features.
type Kind struct {
	Name  string // "question" or "buzz"
	Items string // item table
	Votes string // vote ledger table
	Flags string // flag ledger table
	// PresenterDone enables markDone and hides done items from public lists.
	PresenterDone bool
}

var (
	QuestionKind = Kind{
		Name:          "question",
		Items:         models.TableQuestions,
		Votes:         models.TableQuestionVotes,
		Flags:         models.TableQuestionFlags,
		PresenterDone: true,
	}
	BuzzKind = Kind{
		Name:  "buzz",
		Items: models.TableBuzz,
		Votes: models.TableBuzzVotes,
		Flags: models.TableBuzzFlags,
	}
)

// SortBy selects the ordering of a public list.
type SortBy string

const (
	SortNew SortBy = "new"
	SortTop SortBy = "top"
)

// ParseSort validates a sort parameter. Empty means SortNew.
func ParseSort(s string) (SortBy, error) {
	switch SortBy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortNew:
		return SortNew, nil
	case SortTop:
		return SortTop, nil
	default:
		return "", apperr.NewInvalidRequest("sort must be one of: new, top")
	}
}

func (s SortBy) orderClause() string {
	if s == SortTop {
		return "vote_count DESC, created_at DESC, id DESC"
	}
	return "created_at DESC, id DESC"
}
