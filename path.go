package main

import (
	"fmt"
	"os"
	"strings"
)

// Path locates an input: a file, a mongo collection or a postgres database.
type Path struct {
	File string
	DB   string
	Coll string
	DSN  string
}

// NewPath parses {fspath}, {db}.{col} or postgres://... and returns nil for
// an empty string.
func NewPath(filePathOrColl string) (*Path, error) {
	// 检查filePathOrColl是否作为文件存在
	if _, err := os.Stat(filePathOrColl); err == nil {
		return &Path{
			File: filePathOrColl,
		}, nil
	}
	s := strings.TrimSpace(filePathOrColl)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://") {
		return &Path{DSN: s}, nil
	}
	splitted := strings.Split(s, ".")
	if len(splitted) != 2 || splitted[0] == "" || splitted[1] == "" {
		return nil, fmt.Errorf("neither an existing file nor {db}.{col}: %s", s)
	}
	return &Path{
		DB:   splitted[0],
		Coll: splitted[1],
	}, nil
}

// NewOutputPath is NewPath for a target that may not exist yet: a .json
// suffix always means a file.
func NewOutputPath(s string) (*Path, error) {
	if strings.HasSuffix(strings.ToLower(s), ".json") {
		return &Path{File: s}, nil
	}
	return NewPath(s)
}

func (p *Path) GetDb() string {
	return p.DB
}

func (p *Path) GetColl() string {
	return p.Coll
}

func (p *Path) IsMongo() bool {
	return p.DB != "" && p.Coll != ""
}

func (p *Path) IsPostgres() bool {
	return p.DSN != ""
}

func (p *Path) String() string {
	switch {
	case p.File != "":
		return p.File
	case p.IsPostgres():
		// 不打印密码
		if i := strings.Index(p.DSN, "@"); i >= 0 {
			return "postgres://***" + p.DSN[i:]
		}
		return p.DSN
	default:
		return p.DB + "." + p.Coll
	}
}
