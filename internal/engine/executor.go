package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bianoble/sfsync/internal/mapping"
	"github.com/bianoble/sfsync/internal/salesforce"
)

// CredentialProvider returns a credential valid for the target system.
type CredentialProvider interface {
	Token(ctx context.Context) (*salesforce.Credential, error)
}

// TargetClient is the subset of the target API the engine needs.
type TargetClient interface {
	Query(ctx context.Context, cred *salesforce.Credential, soql string) (*salesforce.Page, error)
	QueryMore(ctx context.Context, cred *salesforce.Credential, next string) (*salesforce.Page, error)
	Delete(ctx context.Context, cred *salesforce.Credential, object, id string) error
	Upsert(ctx context.Context, cred *salesforce.Credential, object, externalField, externalID string, payload map[string]any) (*salesforce.UpsertResult, error)
}

// Executor applies single-record mutations. Neither operation retries.
type Executor struct {
	Client          TargetClient
	Object          string
	ExternalIDField string
	Mapping         *mapping.Table
	Logger          *slog.Logger
}

// Delete removes one remote record. The error is returned for counting;
// it never aborts the pass.
func (x *Executor) Delete(ctx context.Context, cred *salesforce.Credential, rec RemoteRecord) error {
	err := x.Client.Delete(ctx, cred, x.Object, rec.RemoteID)
	if err != nil {
		x.logger().Error("delete failed",
			"object", x.Object,
			"external_id", rec.ExternalID.String(),
			"remote_id", rec.RemoteID,
			"error", err)
		return err
	}
	x.logger().Info("delete ok",
		"object", x.Object,
		"external_id", rec.ExternalID.String(),
		"remote_id", rec.RemoteID)
	return nil
}

// Upsert maps the row and issues a create-or-update keyed by external id.
// Failures are converted into an OutcomeFailed result.
func (x *Executor) Upsert(ctx context.Context, cred *salesforce.Credential, rec SourceRecord) MutationOutcome {
	out := MutationOutcome{ExternalID: rec.ExternalID}

	payload, err := x.Mapping.Apply(rec.Row)
	if err != nil {
		out.Err = fmt.Errorf("mapping row: %w", err)
		x.logFailure(rec, out)
		return out
	}

	res, err := x.Client.Upsert(ctx, cred, x.Object, x.ExternalIDField, rec.ExternalID.String(), payload)
	if res != nil {
		out.StatusCode = res.StatusCode
		out.Body = res.Body
	}
	if err != nil {
		out.Err = err
		var apiErr *salesforce.APIError
		if errors.As(err, &apiErr) && out.StatusCode == 0 {
			out.StatusCode = apiErr.StatusCode
		}
		x.logFailure(rec, out)
		return out
	}

	switch res.StatusCode {
	case http.StatusCreated:
		out.Kind = OutcomeCreated
		out.RemoteID = res.ID
	case http.StatusNoContent:
		out.Kind = OutcomeUpdatedNoContent
	default:
		out.Kind = OutcomeUpdatedWithBody
	}

	x.logger().Info("upsert ok",
		"method", http.MethodPatch,
		"object", x.Object,
		"outcome", out.Kind.String(),
		"external_id", rec.ExternalID.String(),
		"remote_id", out.RemoteID,
		"status", out.StatusCode)
	return out
}

func (x *Executor) logFailure(rec SourceRecord, out MutationOutcome) {
	x.logger().Error("upsert failed",
		"method", http.MethodPatch,
		"object", x.Object,
		"external_id", rec.ExternalID.String(),
		"status", out.StatusCode,
		"error", out.Err,
		"row", rowJSON(rec))
}

func (x *Executor) logger() *slog.Logger {
	if x.Logger == nil {
		return slog.Default()
	}
	return x.Logger
}

func rowJSON(rec SourceRecord) string {
	data, err := json.Marshal(rec.Row)
	if err != nil {
		return fmt.Sprintf("<unencodable row: %v>", err)
	}
	return string(data)
}
