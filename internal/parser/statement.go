package parser

type Operator string

const (
	OpEquals    Operator = "="
	OpNotEquals Operator = "<>"
	OpLike      Operator = "like"
)

type Where struct {
	Column string
	Op     Operator
	Value  string
}

// Statement is one of *Select, *Update, *Insert, *Delete, *Use, *Save or
// *Exit.
type Statement interface {
	// TableName is empty when the statement did not name a table.
	TableName() string
	// MustWait reports whether the statement was prefixed with `wait`.
	MustWait() bool
	isStatement()
}

type Base struct {
	Table string
	Wait  bool
}

func (b *Base) TableName() string { return b.Table }
func (b *Base) MustWait() bool    { return b.Wait }
func (*Base) isStatement()        {}

type Select struct {
	Base
	// All is set for `select *`; Columns is then empty.
	All     bool
	Columns []string
	Where   *Where
}

type Assignment struct {
	Column string
	Value  string
}

type Update struct {
	Base
	Assignments []Assignment
	Where       *Where
}

type Insert struct {
	Base
	// nil when the column list was omitted
	Columns []string
	Values  []string
}

type Delete struct {
	Base
	Where *Where
}

type Use struct{ Base }

type Save struct{ Base }

type Exit struct{ Base }
