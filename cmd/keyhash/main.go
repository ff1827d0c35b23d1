// Command keyhash bcrypt-hashes a partner API key for use as an
// auth.partners[].key entry in the server configuration.
//
// Usage:
//
//	keyhash [-cost 12] <key>
//	echo -n <key> | keyhash
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// minKeyLength matches the minimum key length the server accepts.
const minKeyLength = 16

func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost factor")
	flag.Parse()

	key, err := readKey(flag.Args(), os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keyhash: %v\n", err)
		os.Exit(2)
	}

	hash, err := hashKey(key, *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keyhash: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

// readKey takes the key from the first argument, or else from the first
// line of stdin.
func readKey(args []string, stdin io.Reader) (string, error) {
	if len(args) > 1 {
		return "", errors.New("expected a single key argument")
	}

	var key string
	if len(args) == 1 {
		key = args[0]
	} else {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read key from stdin: %w", err)
		}
		key = strings.TrimRight(line, "\r\n")
	}

	if len(key) < minKeyLength {
		return "", fmt.Errorf("key must be at least %d characters", minKeyLength)
	}
	return key, nil
}

// hashKey returns the bcrypt hash of key at the given cost.
func hashKey(key string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(hash), nil
}
