package contract

import (
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/olivoil/onewordstory/internal/failure"
)

// describe extracts the most useful explanation from a provider or contract
// error: a decoded revert reason, then a nested data message, then the error
// text itself.
func describe(err error) string {
	if reason, ok := revertReason(err); ok {
		return "Reason: " + reason
	}
	if msg, ok := nestedMessage(err); ok {
		return "Details: " + msg
	}
	return "Details: " + err.Error()
}

func revertReason(err error) (string, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return "", false
	}
	switch data := de.ErrorData().(type) {
	case string:
		return unpackRevert(data)
	case map[string]any:
		if reason, ok := data["reason"].(string); ok && reason != "" {
			return reason, true
		}
		if raw, ok := data["data"].(string); ok {
			return unpackRevert(raw)
		}
	}
	return "", false
}

func unpackRevert(hexData string) (string, bool) {
	reason, err := abi.UnpackRevert(common.FromHex(hexData))
	if err != nil || reason == "" {
		return "", false
	}
	return reason, true
}

func nestedMessage(err error) (string, bool) {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return "", false
	}
	data, ok := de.ErrorData().(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := data["message"].(string)
	return msg, ok && msg != ""
}

func submitFailed(err error) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	return failure.Wrap(failure.CodeSubmitFailed, "Failed to add word. "+describe(err), err)
}

func fetchFailed(err error) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	return failure.Wrap(failure.CodeFetchFailed, "Failed to fetch story: "+err.Error(), err)
}

func signerUnavailable(msg string, err error) error {
	if err != nil {
		msg += ": " + err.Error()
	}
	return failure.Wrap(failure.CodeSignerUnavailable, "Error getting signer: "+msg, err)
}
