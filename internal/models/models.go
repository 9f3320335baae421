package models

// Event is a live session attendees post into. Looked up by Slug.
type Event struct {
	ID              string `gorm:"primaryKey;size:26" json:"id"`
	Slug            string `gorm:"not null;uniqueIndex" json:"slug"`
	Title           string `gorm:"not null" json:"title"`
	PresenterSecret string `gorm:"not null" json:"-"` // never sent to clients
	CreatedAt       int64  `gorm:"not null" json:"createdAt"`
}

// Item holds the columns shared by every moderated content kind.
// Timestamps are Unix milliseconds.
type Item struct {
	ID            string `gorm:"primaryKey;size:26" json:"id"`
	EventID       string `gorm:"not null;size:26" json:"eventId"`
	Content       string `gorm:"not null" json:"content"`
	AuthorName    string `gorm:"not null" json:"authorName"`
	IsAnonymous   bool   `gorm:"not null;default:false" json:"isAnonymous"`
	AuthorColor   string `gorm:"not null" json:"authorColor"`
	SessionID     string `gorm:"not null;default:''" json:"-"` // author provenance
	CreatedAt     int64  `gorm:"not null" json:"createdAt"`
	VoteCount     int    `gorm:"not null;default:0" json:"voteCount"`
	FlagCount     int    `gorm:"not null;default:0" json:"flagCount"`
	HiddenByFlags bool   `gorm:"not null;default:false" json:"hiddenByFlags"`
}

// Question is an item the presenter can mark as done.
type Question struct {
	Item              `gorm:"embedded"`
	HiddenByPresenter bool   `gorm:"not null;default:false" json:"hiddenByPresenter"`
	DoneAt            *int64 `json:"doneAt,omitempty"`
}

func (Question) TableName() string { return TableQuestions }

// Base exposes the shared columns.
func (q *Question) Base() *Item { return &q.Item }

// Done reports whether the presenter has taken the question off the queue.
func (q *Question) Done() bool { return q.HiddenByPresenter }

// Buzz is a short free-form message. It has no presenter state.
type Buzz struct {
	Item `gorm:"embedded"`
}

func (Buzz) TableName() string { return TableBuzz }

func (b *Buzz) Base() *Item { return &b.Item }

func (b *Buzz) Done() bool { return false }

// LedgerEntry records that a session has an active vote or flag on an item.
// The same struct backs all four ledger tables via db.Table.
type LedgerEntry struct {
	ID        uint   `gorm:"primaryKey"`
	ItemID    string `gorm:"not null;size:26"`
	SessionID string `gorm:"not null"`
	CreatedAt int64  `gorm:"not null"`
}

// Table names. Items and their ledgers are created by db.Migrate.
const (
	TableQuestions     = "questions"
	TableBuzz          = "buzz"
	TableQuestionVotes = "question_votes"
	TableQuestionFlags = "question_flags"
	TableBuzzVotes     = "buzz_votes"
	TableBuzzFlags     = "buzz_flags"
)

// LedgerTables lists every toggle ledger table.
var LedgerTables = []string{TableQuestionVotes, TableQuestionFlags, TableBuzzVotes, TableBuzzFlags}
