package config

import "github.com/joho/godotenv"

// LoadDotEnv reads a .env file into the environment.
// Existing variables win over values from the file.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}
