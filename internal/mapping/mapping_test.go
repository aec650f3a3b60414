package mapping

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bianoble/sfsync/internal/source"
)

func paymentTermsFields() []Field {
	return []Field{
		{Target: "Name", Source: "PymntGroup"},
		{Target: "CA_FonteDados__c", Source: "DataSource", Default: "I"},
		{Target: "CA_DataAtualizacao__c", Source: "UpdateDate", Transform: "date"},
		{Target: "CA_GeraAtendimento__c", Source: "U_SX_Adiantamento", Transform: "flag"},
		{Target: "CA_Ativo__c", Source: "OpenRcpt", Transform: "bool"},
		{Target: "CA_PrazoMedioCond__c", Source: "U_AC_PrazoMedio", Transform: "decimal", Default: "0"},
		{Target: "CA_Descricao__c", Template: "{{.GroupNum}} - {{.PymntGroup}}"},
	}
}

func TestApplyPaymentTerms(t *testing.T) {
	tbl, err := Compile(paymentTermsFields())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	row := source.NewRow(
		[]string{"GroupNum", "PymntGroup", "DataSource", "UpdateDate", "U_SX_Adiantamento", "OpenRcpt", "U_AC_PrazoMedio"},
		[]any{"7", "30/60", nil, time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC), "sim", "y", nil},
	)

	got, err := tbl.Apply(row)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := map[string]any{
		"Name":                  "30/60",
		"CA_FonteDados__c":      "I",
		"CA_DataAtualizacao__c": "2024-03-09",
		"CA_GeraAtendimento__c": "S",
		"CA_Ativo__c":           true,
		"CA_PrazoMedioCond__c":  json.Number("0"),
		"CA_Descricao__c":       "7 - 30/60",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %#v, want %#v", k, got[k], v)
		}
	}
	if len(got) != len(want) {
		t.Errorf("payload has %d fields, want %d", len(got), len(want))
	}
}

func TestApplyNullWithoutDefault(t *testing.T) {
	tbl, err := Compile([]Field{{Target: "Name", Source: "PymntGroup"}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := tbl.Apply(source.NewRow([]string{"PymntGroup"}, []any{nil}))
	if err != nil {
		t.Fatal(err)
	}
	v, ok := got["Name"]
	if !ok || v != nil {
		t.Errorf("Name = %#v (present=%v), want explicit nil", v, ok)
	}
}

func TestApplyMissingSourceColumn(t *testing.T) {
	tbl, err := Compile([]Field{{Target: "Name", Source: "PymntGroupTYPO", Default: "x"}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := tbl.Apply(source.NewRow([]string{"GroupNum", "PymntGroup"}, []any{"1", "30 days"}))
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldError, got payload=%v err=%v", got, err)
	}
	if fe.Target != "Name" || !strings.Contains(fe.Error(), `source column "PymntGroupTYPO" not in row`) {
		t.Errorf("err = %v", fe)
	}
	if got != nil {
		t.Errorf("payload = %v, want nil", got)
	}
}

func TestApplyBadDateIsFieldError(t *testing.T) {
	tbl, err := Compile([]Field{{Target: "D", Source: "d", Transform: "date"}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = tbl.Apply(source.NewRow([]string{"d"}, []any{"not-a-date"}))
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldError, got %v", err)
	}
	if fe.Target != "D" {
		t.Errorf("target = %q", fe.Target)
	}
}

func TestApplyTemplateMissingKey(t *testing.T) {
	tbl, err := Compile([]Field{{Target: "X", Template: "{{.Nope}}"}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = tbl.Apply(source.NewRow([]string{"a"}, []any{"1"}))
	if err == nil || !strings.Contains(err.Error(), "executing template") {
		t.Fatalf("expected template error, got %v", err)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
		want   string
	}{
		{"missing target", []Field{{Source: "a"}}, "'target' is required"},
		{"duplicate target", []Field{{Target: "A", Source: "a"}, {Target: "A", Source: "b"}}, "duplicate target"},
		{"no source", []Field{{Target: "A"}}, "exactly one of"},
		{"both sources", []Field{{Target: "A", Source: "a", Template: "{{.a}}"}}, "exactly one of"},
		{"unknown transform", []Field{{Target: "A", Source: "a", Transform: "upper"}}, "unknown transform"},
		{"bad template", []Field{{Target: "A", Template: "{{"}}, "parsing template"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.fields)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Compile error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestTargetsOrder(t *testing.T) {
	tbl, err := Compile(paymentTermsFields())
	if err != nil {
		t.Fatal(err)
	}
	targets := tbl.Targets()
	if targets[0] != "Name" || targets[len(targets)-1] != "CA_Descricao__c" {
		t.Errorf("targets = %v", targets)
	}
}
