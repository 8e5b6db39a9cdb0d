package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cleverdevil/dwell/internal/model"
)

// Site is the publishing identity: the author card stamped on new posts,
// the passwords that may approve authorization requests and the
// syndication targets advertised over micropub.
type Site struct {
	Author      model.Card                `mapstructure:"author"`
	Credentials []Credential              `mapstructure:"credentials"`
	Syndication []model.SyndicationTarget `mapstructure:"syndication"`
}

// Credential binds an identity URL to a bcrypt password hash. A list is
// used rather than a map because viper folds and splits keys on dots.
type Credential struct {
	Me           string `mapstructure:"me"`
	PasswordHash string `mapstructure:"password_hash"`
}

// LoadSite reads the YAML site file at path. Author fields can be
// overridden with DWELL_AUTHOR_NAME, DWELL_AUTHOR_URL and DWELL_AUTHOR_PHOTO.
func LoadSite(path string) (*Site, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DWELL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults make the author keys known to viper so env overrides apply
	// even when the file leaves them out.
	v.SetDefault("author.name", "")
	v.SetDefault("author.url", "")
	v.SetDefault("author.photo", "")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read site file %s: %w", path, err)
	}
	site := &Site{}
	if err := v.Unmarshal(site); err != nil {
		return nil, fmt.Errorf("decode site file %s: %w", path, err)
	}
	site.Author = model.Card{
		Name:  v.GetString("author.name"),
		URL:   v.GetString("author.url"),
		Photo: v.GetString("author.photo"),
	}
	if err := site.Validate(); err != nil {
		return nil, err
	}
	return site, nil
}

// Validate rejects credentials without an identity or hash.
func (s *Site) Validate() error {
	for i, c := range s.Credentials {
		if strings.TrimSpace(c.Me) == "" {
			return fmt.Errorf("credentials[%d]: missing me", i)
		}
		if c.PasswordHash == "" {
			return fmt.Errorf("credentials[%d] (%s): missing password_hash", i, c.Me)
		}
	}
	return nil
}

// PasswordHash returns the hash configured for me. Identities compare after
// trailing-slash normalization.
func (s *Site) PasswordHash(me string) (string, bool) {
	if s == nil {
		return "", false
	}
	want := model.NormalizeMe(me)
	for _, c := range s.Credentials {
		if model.NormalizeMe(c.Me) == want {
			return c.PasswordHash, true
		}
	}
	return "", false
}
