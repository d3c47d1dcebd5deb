package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Structs

// Env holds information specific to the
// system where a replica is deployed. This
// enables host adaptions without needing
// to maintain two different config files.
type Env struct {
	Name       string
	ListenAddr string
	HTTPAddr   string
}

// Functions

// LoadEnv reads the supplied .env files, or .env in
// the working directory if none are named, and
// collects the ORSET_* overrides. Missing files are
// not an error, variables may come from the process
// environment as well.
func LoadEnv(files ...string) (*Env, error) {

	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {

		err := godotenv.Load(file)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read in env file '%s'", file)
		}
	}

	return &Env{
		Name:       os.Getenv("ORSET_NAME"),
		ListenAddr: os.Getenv("ORSET_LISTEN_ADDR"),
		HTTPAddr:   os.Getenv("ORSET_HTTP_ADDR"),
	}, nil
}

// Apply overrides the values of conf with every
// non-empty value of env.
func (env *Env) Apply(conf *Config) {

	if env.Name != "" {
		conf.Name = env.Name
	}

	if env.ListenAddr != "" {
		conf.ListenAddr = env.ListenAddr
	}

	if env.HTTPAddr != "" {
		conf.HTTPAddr = env.HTTPAddr
	}
}
