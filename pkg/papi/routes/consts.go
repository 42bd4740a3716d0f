package routes

var (
	BearerAuth = []map[string][]string{
		{"bearer": {}},
	}
)

type Tag string

const (
	TagHealth  Tag = "health"
	TagAuth    Tag = "auth"
	TagPayroll Tag = "payroll"
	TagClaims  Tag = "claims"
)

func (t Tag) String() string { return string(t) }

func AllTags() []string {
	return []string{
		TagHealth.String(),
		TagAuth.String(),
		TagPayroll.String(),
		TagClaims.String(),
	}
}
