package contract

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/tidwall/gjson"
)

// Members of the OneWordStory interface the client relies on.
const (
	MethodGetStory = "getStory"
	MethodAddWord  = "addWord"
	EventWordAdded = "WordAdded"
)

//go:embed abi/OneWordStory.json
var defaultArtifact []byte

// DefaultABI returns the embedded OneWordStory interface.
func DefaultABI() abi.ABI {
	parsed, err := ParseABI(defaultArtifact)
	if err != nil {
		panic(fmt.Sprintf("contract: embedded artifact: %v", err))
	}
	return parsed
}

// LoadABI reads a contract interface from path. An empty path yields the
// embedded default.
func LoadABI(path string) (abi.ABI, error) {
	if path == "" {
		return DefaultABI(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read abi: %w", err)
	}
	parsed, err := ParseABI(data)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("%s: %w", path, err)
	}
	return parsed, nil
}

// ParseABI accepts either a bare ABI array or a Foundry/Hardhat build artifact
// whose "abi" field holds it.
func ParseABI(data []byte) (abi.ABI, error) {
	if !gjson.ValidBytes(data) {
		return abi.ABI{}, fmt.Errorf("parse abi: invalid JSON")
	}
	raw := data
	if field := gjson.GetBytes(data, "abi"); field.Exists() {
		raw = []byte(field.Raw)
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}
	if err := validate(parsed); err != nil {
		return abi.ABI{}, err
	}
	return parsed, nil
}

func validate(a abi.ABI) error {
	getStory, ok := a.Methods[MethodGetStory]
	if !ok || len(getStory.Inputs) != 0 || len(getStory.Outputs) != 1 ||
		getStory.Outputs[0].Type.String() != "string[]" {
		return fmt.Errorf("abi: missing %s() returns (string[])", MethodGetStory)
	}
	addWord, ok := a.Methods[MethodAddWord]
	if !ok || len(addWord.Inputs) != 1 || addWord.Inputs[0].Type.T != abi.StringTy {
		return fmt.Errorf("abi: missing %s(string)", MethodAddWord)
	}
	if _, ok := a.Events[EventWordAdded]; !ok {
		return fmt.Errorf("abi: missing event %s", EventWordAdded)
	}
	return nil
}
