// Package client implements the registry synchronization engine
// (UpdateCheckpoint, C5), the publish pipeline (Publish/PublishWithInfo/
// WaitForPublish, C6), and download (§4.7). It is the one package that ties
// together storage, the namespace resolver, and the logical registry API.
package client

import (
	"errors"
	"fmt"

	"github.com/wargproto/warg-go/api"
	"github.com/wargproto/warg-go/protocol"
)

// Kind enumerates the client-level error taxonomy (spec.md §7), mirroring
// the original Rust crate's thiserror enum one variant at a time: each
// concept-level kind here is a Kind constant plus whatever typed payload
// fields Error carries for it.
type Kind int

const (
	KindOther Kind = iota
	KindApi
	KindNoDefaultUrl
	KindNoCurrentDirectory
	KindNoNamespaceConfig
	KindInvalidLocalNamespaceConfig
	KindResettingRegistryLocalStateFailed
	KindClearContentCacheFailed
	KindInvalidCheckpointSignature
	KindInvalidCheckpointKeyId
	KindNoOperatorRecords
	KindOperatorValidationFailed
	KindCannotInitializePackage
	KindMustInitializePackage
	KindNotPublishing
	KindNothingToPublish
	KindPackageDoesNotExist
	KindPackageVersionDoesNotExist
	KindPackageValidationFailed
	KindContentNotFound
	KindPackageLogEmpty
	KindPublishRejected
	KindPackageMissingContent
	KindCheckpointLogLengthRewind
	KindCheckpointChangedLogRootOrMapRoot
	KindNamespaceStateError
)

func (k Kind) String() string {
	switch k {
	case KindOther:
		return "Other"
	case KindApi:
		return "Api"
	case KindNoDefaultUrl:
		return "NoDefaultUrl"
	case KindNoCurrentDirectory:
		return "NoCurrentDirectory"
	case KindNoNamespaceConfig:
		return "NoNamespaceConfig"
	case KindInvalidLocalNamespaceConfig:
		return "InvalidLocalNamespaceConfig"
	case KindResettingRegistryLocalStateFailed:
		return "ResettingRegistryLocalStateFailed"
	case KindClearContentCacheFailed:
		return "ClearContentCacheFailed"
	case KindInvalidCheckpointSignature:
		return "InvalidCheckpointSignature"
	case KindInvalidCheckpointKeyId:
		return "InvalidCheckpointKeyId"
	case KindNoOperatorRecords:
		return "NoOperatorRecords"
	case KindOperatorValidationFailed:
		return "OperatorValidationFailed"
	case KindCannotInitializePackage:
		return "CannotInitializePackage"
	case KindMustInitializePackage:
		return "MustInitializePackage"
	case KindNotPublishing:
		return "NotPublishing"
	case KindNothingToPublish:
		return "NothingToPublish"
	case KindPackageDoesNotExist:
		return "PackageDoesNotExist"
	case KindPackageVersionDoesNotExist:
		return "PackageVersionDoesNotExist"
	case KindPackageValidationFailed:
		return "PackageValidationFailed"
	case KindContentNotFound:
		return "ContentNotFound"
	case KindPackageLogEmpty:
		return "PackageLogEmpty"
	case KindPublishRejected:
		return "PublishRejected"
	case KindPackageMissingContent:
		return "PackageMissingContent"
	case KindCheckpointLogLengthRewind:
		return "CheckpointLogLengthRewind"
	case KindCheckpointChangedLogRootOrMapRoot:
		return "CheckpointChangedLogRootOrMapRoot"
	case KindNamespaceStateError:
		return "NamespaceStateError"
	default:
		return "Unknown"
	}
}

// Error is the client package's single error type: every failure the core
// returns carries a Kind plus whatever fields are meaningful for it, so
// callers can branch with errors.As instead of string matching.
type Error struct {
	Kind Kind

	// Package-scoped failures.
	Name string

	// Checkpoint/log-length failures.
	LogLength uint64
	From      uint64
	To        uint64

	// Publish failures.
	RecordId protocol.RecordId
	Reason   string

	// Path-scoped failures (namespace config).
	Path string

	Err error
}

func (e *Error) Error() string {
	msg := "client: " + e.Kind.String()
	switch e.Kind {
	case KindPackageDoesNotExist, KindOperatorValidationFailed:
		if e.Name != "" {
			msg += fmt.Sprintf(" (%s)", e.Name)
		}
	case KindPackageValidationFailed:
		msg += fmt.Sprintf(" (%s)", e.Name)
	case KindPackageVersionDoesNotExist:
		msg += fmt.Sprintf(" (%s)", e.Name)
	case KindPublishRejected:
		msg += fmt.Sprintf(" (%s, record %s): %s", e.Name, e.RecordId, e.Reason)
	case KindCheckpointLogLengthRewind:
		msg += fmt.Sprintf(" (from %d to %d)", e.From, e.To)
	case KindCheckpointChangedLogRootOrMapRoot:
		msg += fmt.Sprintf(" (log_length %d)", e.LogLength)
	case KindNoNamespaceConfig, KindInvalidLocalNamespaceConfig:
		if e.Path != "" {
			msg += fmt.Sprintf(" (%s)", e.Path)
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, &client.Error{Kind: client.KindPackageLogEmpty}) works
// without callers needing to populate every field.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, err error) *Error { return &Error{Kind: kind, Err: err} }

func packageErr(kind Kind, name string, err error) *Error {
	return &Error{Kind: kind, Name: name, Err: err}
}

// translateFetchError maps a transport-level "log not found" for a known
// log id into PackageDoesNotExist, per spec.md §7's propagation policy; all
// other transport errors propagate wrapped in Kind Api.
func translateFetchError(name string, err error) error {
	var fe *api.FetchError
	if errors.As(err, &fe) && fe.LogNotFound != nil {
		return packageErr(KindPackageDoesNotExist, name, err)
	}
	var pe *api.PackageError
	if errors.As(err, &pe) {
		return &Error{Kind: KindPublishRejected, Name: name, Reason: pe.Rejection, Err: err}
	}
	return packageErr(KindApi, name, err)
}
