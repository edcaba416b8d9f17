package container

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sensiblebit/certhealth"
)

// LoadPasswordsFromFile loads passwords from a file, one password per line.
func LoadPasswordsFromFile(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var passwords []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			passwords = append(passwords, pwd)
		}
	}
	return passwords, scanner.Err()
}

// Passwords merges the default passwords, the given list and the contents of
// passwordFile (if set), deduplicated in that order.
func Passwords(list []string, passwordFile string) ([]string, error) {
	extra := append([]string{}, list...)
	if passwordFile != "" {
		fromFile, err := LoadPasswordsFromFile(passwordFile)
		if err != nil {
			return nil, fmt.Errorf("loading passwords from file: %w", err)
		}
		extra = append(extra, fromFile...)
	}
	return certhealth.DeduplicatePasswords(extra), nil
}
