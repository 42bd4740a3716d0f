package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type EnvConfig struct {
	Port                string `envconfig:"PORT" default:"8000"`
	BaseURL             string `envconfig:"BASE_URL" default:"http://localhost:8000"`
	AuthSecret          string `envconfig:"AUTH_SECRET" required:"true"`
	Environment         string `envconfig:"ENVIRONMENT" default:"development"`
	AccessTokenTTL      int    `envconfig:"ACCESS_TOKEN_TTL" default:"300"`
	RefreshTokenTTL     int    `envconfig:"REFRESH_TOKEN_TTL" default:"86400"`
	NonceTTL            int    `envconfig:"NONCE_TTL" default:"600"`
	RotateRefreshTokens bool   `envconfig:"ROTATE_REFRESH_TOKENS" default:"false"`
	RedisAddr           string `envconfig:"REDIS_ADDR"`
	RedisPassword       string `envconfig:"REDIS_PASSWORD"`
	RedisDB             int    `envconfig:"REDIS_DB" default:"0"`
	DatabaseURL         string `envconfig:"DATABASE_URL"`
	StubEmployees       string `envconfig:"STUB_EMPLOYEES"`
	StubOrgName         string `envconfig:"STUB_ORG_NAME" default:"Acme Payroll"`
	StubUsers           string `envconfig:"STUB_USERS"`
	TokenAddress        string `envconfig:"TOKEN_ADDRESS" default:"0x00000000000000000000000000000000000c05dc"`
	VaultAddress        string `envconfig:"VAULT_ADDRESS" default:"0x000000000000000000000000000000000000a017"`
	WrapGateway         string `envconfig:"WRAP_GATEWAY"`
	ChainID             int64  `envconfig:"CHAIN_ID" default:"84532"`
	ClaimWindowDays     int    `envconfig:"CLAIM_WINDOW_DAYS" default:"14"`
}

// User is a username/password login bound to a wallet. Password is either
// plain text or a bcrypt hash.
type User struct {
	Username string
	Password string
	Wallet   string
}

// Employee is one seeded payee.
type Employee struct {
	Wallet      string
	SalaryUnits int64
}

var addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsDev returns true if the application is running in development environment
func IsDev() bool {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	return env == "development" || env == "dev" || env == ""
}

func ValidateEnv() (*EnvConfig, error) {
	if IsDev() {
		if err := godotenv.Load(); err != nil {
			log.Println("ℹ No .env file found")
		} else {
			log.Println("✓ Loaded .env file")
		}
	}

	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *EnvConfig) Validate() error {
	var errors []string

	if len(c.AuthSecret) < 32 {
		errors = append(errors, "  ❌ AUTH_SECRET must be at least 32 characters")
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		errors = append(errors, "  ❌ BASE_URL must be a valid URL")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.NonceTTL <= 0 {
		errors = append(errors, "  ❌ ACCESS_TOKEN_TTL, REFRESH_TOKEN_TTL and NONCE_TTL must be positive")
	}
	if !addressRe.MatchString(c.TokenAddress) {
		errors = append(errors, "  ❌ TOKEN_ADDRESS must be a 0x-prefixed 20 byte address")
	}
	if !addressRe.MatchString(c.VaultAddress) {
		errors = append(errors, "  ❌ VAULT_ADDRESS must be a 0x-prefixed 20 byte address")
	}
	if c.WrapGateway != "" && !addressRe.MatchString(c.WrapGateway) {
		errors = append(errors, "  ❌ WRAP_GATEWAY must be a 0x-prefixed 20 byte address")
	}
	if c.ClaimWindowDays <= 0 {
		errors = append(errors, "  ❌ CLAIM_WINDOW_DAYS must be positive")
	}
	if _, err := c.Employees(); err != nil {
		errors = append(errors, "  ❌ STUB_EMPLOYEES: "+err.Error())
	}
	if _, err := c.Users(); err != nil {
		errors = append(errors, "  ❌ STUB_USERS: "+err.Error())
	}
	if c.DatabaseURL != "" {
		if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "  ❌ DATABASE_URL must be a postgres:// URL")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("environment validation failed:\n%s", strings.Join(errors, "\n"))
	}
	return nil
}

// Employees parses STUB_EMPLOYEES, a comma separated list of
// wallet:salary_units pairs. An empty value seeds three demo payees.
func (c *EnvConfig) Employees() ([]Employee, error) {
	if strings.TrimSpace(c.StubEmployees) == "" {
		return []Employee{
			{Wallet: "0x1000000000000000000000000000000000000001", SalaryUnits: 3_000_000_000},
			{Wallet: "0x2000000000000000000000000000000000000002", SalaryUnits: 4_500_000_000},
			{Wallet: "0x3000000000000000000000000000000000000003", SalaryUnits: 2_750_000_000},
		}, nil
	}

	var out []Employee
	seen := map[string]bool{}
	for _, entry := range strings.Split(c.StubEmployees, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		wallet, units, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q is not wallet:salary_units", entry)
		}
		wallet = strings.ToLower(strings.TrimSpace(wallet))
		if !addressRe.MatchString(wallet) {
			return nil, fmt.Errorf("invalid wallet %q", wallet)
		}
		if seen[wallet] {
			return nil, fmt.Errorf("duplicate wallet %q", wallet)
		}
		seen[wallet] = true
		n, err := strconv.ParseInt(strings.TrimSpace(units), 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid salary units %q for %s", units, wallet)
		}
		out = append(out, Employee{Wallet: wallet, SalaryUnits: n})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no employees configured")
	}
	return out, nil
}

// Users parses STUB_USERS, a comma separated list of
// username:password:wallet entries. The password may contain colons.
func (c *EnvConfig) Users() ([]User, error) {
	var out []User
	seen := map[string]bool{}
	for _, entry := range strings.Split(c.StubUsers, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		username, rest, ok := strings.Cut(entry, ":")
		i := strings.LastIndex(rest, ":")
		if !ok || i < 0 {
			return nil, fmt.Errorf("entry %q is not username:password:wallet", entry)
		}
		password, wallet := rest[:i], strings.ToLower(rest[i+1:])
		if username == "" || password == "" {
			return nil, fmt.Errorf("entry %q has an empty username or password", entry)
		}
		if !addressRe.MatchString(wallet) {
			return nil, fmt.Errorf("invalid wallet %q for %s", wallet, username)
		}
		if seen[username] {
			return nil, fmt.Errorf("duplicate user %q", username)
		}
		seen[username] = true
		out = append(out, User{Username: username, Password: password, Wallet: wallet})
	}
	return out, nil
}

func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func (c *EnvConfig) Print(fmtr func(string, ...interface{})) {
	fmtr("📋 Configuration:\n")
	fmtr("  Environment: %s\n", c.Environment)
	fmtr("  Port: %s\n", c.Port)
	fmtr("  Base URL: %s\n", c.BaseURL)
	fmtr("  Auth Secret: %s\n", MaskSecret(c.AuthSecret))
	fmtr("  Access TTL: %ds\n", c.AccessTokenTTL)
	fmtr("  Refresh TTL: %ds (rotation: %t)\n", c.RefreshTokenTTL, c.RotateRefreshTokens)

	if c.RedisAddr != "" {
		fmtr("  KV: redis %s/%d\n", c.RedisAddr, c.RedisDB)
	} else {
		fmtr("  KV: in-memory\n")
	}

	if c.DatabaseURL != "" {
		if u, err := url.Parse(c.DatabaseURL); err == nil {
			fmtr("  Ledger: postgres %s\n", u.Redacted())
		}
	} else {
		fmtr("  Ledger: in-memory\n")
	}
	if users, err := c.Users(); err == nil && len(users) > 0 {
		fmtr("  Password logins: %d\n", len(users))
	}

	fmtr("  Chain: %d (token %s, vault %s)\n", c.ChainID, c.TokenAddress, c.VaultAddress)
	if c.WrapGateway != "" {
		fmtr("  Wrap gateway: %s\n", c.WrapGateway)
	} else {
		fmtr("  Wrap gateway: ✗ not set\n")
	}
}
