package botkit

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON разбирает аргументы команды, переданные как JSON
func ParseJSON[T any](src string) (T, error) {
	var args T

	src = strings.TrimSpace(src)
	if src == "" {
		return args, fmt.Errorf("empty arguments")
	}

	if err := json.Unmarshal([]byte(src), &args); err != nil {
		return args, fmt.Errorf("parse arguments: %w", err)
	}

	return args, nil
}
