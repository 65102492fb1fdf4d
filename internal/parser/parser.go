package parser

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/tobsdb/sqlair/pkg"
)

// Keywords match case-insensitively. Identifiers and literals keep the case
// they were written in; quoting lets them hold spaces, punctuation or a
// keyword.
var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:[^"]|"")*"|'(?:[^']|'')*'`},
	{Name: "Punct", Pattern: `<>|[=(),*<>!;]`},
	{Name: "Word", Pattern: `[^\s"'=<>(),;*!]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// participle grammar tags are not standard struct tags
//
//nolint:govet
type sqlStatement struct {
	Wait bool `@"wait"?`

	Select *selectStmt `( @@`
	Update *updateStmt `| @@`
	Insert *insertStmt `| @@`
	Delete *deleteStmt `| @@`
	Use    *useStmt    `| @@`
	Save   *saveStmt   `| @@`
	Exit   bool        `| @"exit" )`
}

type selectStmt struct {
	All     bool         `"select" ( @"*"`
	Columns []string     `        | @(Word | String) ( "," @(Word | String) )* )`
	Table   string       `( "from" @(Word | String) )?`
	Where   *whereClause `( "where" @@ )?`
}

type updateStmt struct {
	Table       string        `"update" ( (?! "set") @(Word | String) )?`
	Assignments []*assignment `"set" @@ ( "," @@ )*`
	Where       *whereClause  `( "where" @@ )?`
}

type assignment struct {
	Column string `@(Word | String) "="`
	Value  string `@(Word | String)`
}

type insertStmt struct {
	Table   string   `"insert" "into" @(Word | String)`
	Columns []string `( "(" @(Word | String) ( "," @(Word | String) )* ")" )?`
	Values  []string `"values" "(" @(Word | String) ( "," @(Word | String) )* ")"`
}

type deleteStmt struct {
	Table string       `"delete" ( "from" @(Word | String) )?`
	Where *whereClause `( "where" @@ )?`
}

type useStmt struct {
	Table string `"use" @(Word | String)`
}

type saveStmt struct {
	Table string `"save" @(Word | String)?`
}

type whereClause struct {
	Column string `@(Word | String)`
	Op     string `@( "=" | "<>" | "like" )`
	Value  string `@(Word | String)`
}

func unquote(t lexer.Token) (lexer.Token, error) {
	q := t.Value[:1]
	t.Value = strings.ReplaceAll(t.Value[1:len(t.Value)-1], q+q, q)
	return t, nil
}

var sqlParser = participle.MustBuild[sqlStatement](
	participle.Lexer(sqlLexer),
	participle.Map(unquote, "String"),
	participle.CaseInsensitive("Word"),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse turns one statement into its Statement. Surrounding whitespace and a
// single trailing `;` are ignored.
func Parse(sql string) (Statement, error) {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	if sql == "" {
		return nil, pkg.NewQueryError(pkg.SyntaxError, "empty statement")
	}

	parsed, err := sqlParser.ParseString("", sql)
	if err != nil {
		return nil, pkg.QueryErrorWrap(pkg.SyntaxError, err, "invalid statement")
	}
	return parsed.statement(), nil
}

func (s *sqlStatement) statement() Statement {
	switch {
	case s.Select != nil:
		return &Select{
			Base:    Base{Table: s.Select.Table, Wait: s.Wait},
			All:     s.Select.All,
			Columns: s.Select.Columns,
			Where:   s.Select.Where.where(),
		}
	case s.Update != nil:
		return &Update{
			Base: Base{Table: s.Update.Table, Wait: s.Wait},
			Assignments: pkg.Transform(s.Update.Assignments, func(a *assignment) Assignment {
				return Assignment{Column: a.Column, Value: a.Value}
			}),
			Where: s.Update.Where.where(),
		}
	case s.Insert != nil:
		return &Insert{
			Base:    Base{Table: s.Insert.Table, Wait: s.Wait},
			Columns: s.Insert.Columns,
			Values:  s.Insert.Values,
		}
	case s.Delete != nil:
		return &Delete{
			Base:  Base{Table: s.Delete.Table, Wait: s.Wait},
			Where: s.Delete.Where.where(),
		}
	case s.Use != nil:
		return &Use{Base{Table: s.Use.Table, Wait: s.Wait}}
	case s.Save != nil:
		return &Save{Base{Table: s.Save.Table, Wait: s.Wait}}
	default:
		return &Exit{Base{Wait: s.Wait}}
	}
}

func (w *whereClause) where() *Where {
	if w == nil {
		return nil
	}
	return &Where{Column: w.Column, Op: Operator(strings.ToLower(w.Op)), Value: w.Value}
}
