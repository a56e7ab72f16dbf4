package seed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/johnwards/dealerhub/internal/domain"
)

// Collection names.
const (
	Users           = "users"
	Dealers         = "dealers"
	DealerContracts = "dealer-contracts"
	Customers       = "customers"
	VehicleModels   = "vehicle-models"
	VehicleVariants = "vehicle-variants"
	VehicleStock    = "vehicle-stock"
	Quotations      = "quotations"
	SalesOrders     = "sales-orders"
	Payments        = "payments"
	Feedback        = "feedback"
	AuditLogs       = "audit-logs"
)

func str(name, label string, required bool) domain.FieldDef {
	return domain.FieldDef{Name: name, Label: label, Type: domain.FieldString, Required: required}
}

func num(name, label string, required bool) domain.FieldDef {
	return domain.FieldDef{Name: name, Label: label, Type: domain.FieldNumber, Required: required}
}

func date(name, label string, required bool) domain.FieldDef {
	return domain.FieldDef{Name: name, Label: label, Type: domain.FieldDate, Required: required}
}

func ref(name, label string, required bool) domain.FieldDef {
	return domain.FieldDef{Name: name, Label: label, Type: domain.FieldRef, Required: required}
}

func enum(name, label string, required bool, options ...string) domain.FieldDef {
	return domain.FieldDef{Name: name, Label: label, Type: domain.FieldEnum, Required: required, Options: options}
}

func immutable(f domain.FieldDef) domain.FieldDef {
	f.Immutable = true
	return f
}

// Definitions lists every collection the dealer API serves.
var Definitions = []domain.Collection{
	{
		Name: Users, LabelSingular: "User", LabelPlural: "Users", DisplayField: "fullName", Audited: true,
		Fields: []domain.FieldDef{
			str("fullName", "Full Name", true),
			str("email", "Email", true),
			enum("role", "Role", true, "Admin", "EVMStaff", "DealerManager", "DealerStaff"),
			ref("dealerId", "Dealer", false),
			enum(domain.KeyStatus, "Status", false, "Active", "Inactive"),
		},
	},
	{
		Name: Dealers, LabelSingular: "Dealer", LabelPlural: "Dealers", DisplayField: "name", Audited: true,
		Fields: []domain.FieldDef{
			str("name", "Name", true),
			immutable(str("code", "Code", true)),
			str("address", "Address", false),
			str("phone", "Phone", false),
			str("email", "Email", false),
			str("region", "Region", false),
			enum(domain.KeyStatus, "Status", false, "Active", "Inactive", "Suspended"),
		},
	},
	{
		Name: DealerContracts, LabelSingular: "Dealer Contract", LabelPlural: "Dealer Contracts", DisplayField: "contractNumber", Audited: true,
		Fields: []domain.FieldDef{
			ref("dealerId", "Dealer", true),
			str("contractNumber", "Contract Number", true),
			date("startDate", "Start Date", true),
			date("endDate", "End Date", true),
			num("salesTarget", "Sales Target", false),
			num("commissionRate", "Commission Rate", false),
			str("terms", "Terms", false),
		},
	},
	{
		Name: Customers, LabelSingular: "Customer", LabelPlural: "Customers", DisplayField: "fullName", Audited: true,
		Fields: []domain.FieldDef{
			str("fullName", "Full Name", true),
			str("phone", "Phone", true),
			str("email", "Email", false),
			str("address", "Address", false),
			ref("dealerId", "Dealer", false),
		},
	},
	{
		Name: VehicleModels, LabelSingular: "Vehicle Model", LabelPlural: "Vehicle Models", DisplayField: "name", Audited: true,
		Fields: []domain.FieldDef{
			str("name", "Name", true),
			str("brand", "Brand", true),
			str("segment", "Segment", false),
			str("description", "Description", false),
			enum(domain.KeyStatus, "Status", false, "Active", "Discontinued"),
		},
	},
	{
		Name: VehicleVariants, LabelSingular: "Vehicle Variant", LabelPlural: "Vehicle Variants", DisplayField: "name", Audited: true,
		Fields: []domain.FieldDef{
			ref("modelId", "Model", true),
			str("name", "Name", true),
			str("color", "Color", false),
			num("batteryCapacity", "Battery Capacity (kWh)", false),
			num("rangeKm", "Range (km)", false),
			num("price", "Price", true),
		},
	},
	{
		Name: VehicleStock, LabelSingular: "Vehicle", LabelPlural: "Vehicle Stock", DisplayField: "vin", Audited: true,
		Fields: []domain.FieldDef{
			ref("variantId", "Variant", true),
			ref("dealerId", "Dealer", true),
			immutable(str("vin", "VIN", true)),
			date("arrivedAt", "Arrived At", false),
			enum(domain.KeyStatus, "Status", false, "Available", "Reserved", "Sold", "InTransit"),
		},
	},
	{
		Name: Quotations, LabelSingular: "Quotation", LabelPlural: "Quotations", DisplayField: "id", Audited: true,
		Fields: []domain.FieldDef{
			ref("dealerId", "Dealer", true),
			ref("customerId", "Customer", true),
			ref("variantId", "Variant", true),
			num("quantity", "Quantity", true),
			num("unitPrice", "Unit Price", true),
			num("discount", "Discount", false),
			num("totalAmount", "Total Amount", false),
			date("validUntil", "Valid Until", false),
			enum(domain.KeyStatus, "Status", false, "Draft", "Sent", "Accepted", "Rejected", "Expired"),
		},
	},
	{
		Name: SalesOrders, LabelSingular: "Sales Order", LabelPlural: "Sales Orders", DisplayField: "id", Audited: true,
		Fields: []domain.FieldDef{
			immutable(ref("dealerId", "Dealer", true)),
			ref("customerId", "Customer", true),
			ref("variantId", "Variant", true),
			num("quantity", "Quantity", true),
			num("totalAmount", "Total Amount", true),
			date("orderDate", "Order Date", false),
			date("deliveryDate", "Delivery Date", false),
			enum(domain.KeyStatus, "Status", false, "Pending", "Confirmed", "Delivered", "Cancelled"),
		},
	},
	{
		Name: Payments, LabelSingular: "Payment", LabelPlural: "Payments", DisplayField: "id", Audited: true,
		Fields: []domain.FieldDef{
			ref("dealerId", "Dealer", true),
			ref("salesOrderId", "Sales Order", false),
			num("amount", "Amount", true),
			enum("method", "Method", true, "Cash", "BankTransfer", "Card", "Installment"),
			{Name: "paidAt", Label: "Paid At", Type: domain.FieldDateTime},
			enum(domain.KeyStatus, "Status", false, "Pending", "Completed", "Failed", "Cancelled"),
		},
	},
	{
		Name: Feedback, LabelSingular: "Feedback", LabelPlural: "Feedback", DisplayField: "subject", Audited: true,
		Fields: []domain.FieldDef{
			ref("dealerId", "Dealer", false),
			ref("customerId", "Customer", false),
			str("subject", "Subject", true),
			str("content", "Content", false),
			num("rating", "Rating", false),
			enum(domain.KeyStatus, "Status", false, "New", "InProgress", "Resolved", "Closed"),
		},
	},
	{
		Name: AuditLogs, LabelSingular: "Audit Log", LabelPlural: "Audit Logs", DisplayField: "action", ReadOnly: true,
		Fields: []domain.FieldDef{
			ref("userId", "User", false),
			enum("action", "Action", true, "CREATE", "UPDATE", "DELETE", "EXPORT"),
			str("entityType", "Entity Type", true),
			str("entityId", "Entity ID", false),
			str("details", "Details", false),
		},
	},
}

// Collections inserts the collection definitions that do not exist yet.
func Collections(ctx context.Context, db *sql.DB) error {
	ts := "2024-01-01T00:00:00.000Z"
	for _, c := range Definitions {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO collections (name, label_singular, label_plural, display_field, audited, read_only, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Name, c.LabelSingular, c.LabelPlural, c.DisplayField, c.Audited, c.ReadOnly, ts, ts,
		); err != nil {
			return fmt.Errorf("insert collection %s: %w", c.Name, err)
		}

		for i, f := range c.Fields {
			var options sql.NullString
			if len(f.Options) > 0 {
				b, err := json.Marshal(f.Options)
				if err != nil {
					return fmt.Errorf("marshal options: %w", err)
				}
				options = sql.NullString{String: string(b), Valid: true}
			}
			if _, err := db.ExecContext(ctx,
				`INSERT OR IGNORE INTO field_definitions (collection, name, label, type, required, immutable, options, display_order)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				c.Name, f.Name, f.Label, f.Type, f.Required, f.Immutable, options, i+1,
			); err != nil {
				return fmt.Errorf("insert field %s.%s: %w", c.Name, f.Name, err)
			}
		}
	}
	return nil
}
