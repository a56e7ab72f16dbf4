package seed

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/johnwards/dealerhub/internal/domain"
	"github.com/johnwards/dealerhub/internal/store"
)

// Samples inserts a small, linked data set when no records exist yet. The
// first user created acts as the author of every later audit entry.
func Samples(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return fmt.Errorf("count records: %w", err)
	}
	if count > 0 {
		return nil
	}

	records := store.New(db).Records
	s := &sampler{ctx: store.WithActor(ctx, "system"), records: records}

	admin := s.create(Users, map[string]any{
		"fullName": "Nguyễn Văn An", "email": "admin@dealerhub.vn", "role": "Admin", "status": "Active",
	})
	s.ctx = store.WithActor(ctx, admin)

	hanoi := s.create(Dealers, map[string]any{
		"name": "VinEV Hà Nội", "code": "HN01", "address": "12 Láng Hạ, Đống Đa", "phone": "0241234567",
		"email": "hanoi@dealerhub.vn", "region": "North", "status": "Active",
	})
	saigon := s.create(Dealers, map[string]any{
		"name": "VinEV Sài Gòn", "code": "SG01", "address": "88 Nguyễn Huệ, Quận 1", "phone": "0287654321",
		"email": "saigon@dealerhub.vn", "region": "South", "status": "Active",
	})
	danang := s.create(Dealers, map[string]any{
		"name": "VinEV Đà Nẵng", "code": "DN01", "address": "5 Bạch Đằng, Hải Châu", "phone": "0236111222",
		"email": "danang@dealerhub.vn", "region": "Central", "status": "Suspended",
	})

	s.create(Users, map[string]any{
		"fullName": "Trần Thị Bình", "email": "binh@dealerhub.vn", "role": "EVMStaff", "status": "Active",
	})
	s.create(Users, map[string]any{
		"fullName": "Lê Minh Châu", "email": "chau@dealerhub.vn", "role": "DealerManager", "dealerId": hanoi, "status": "Active",
	})
	s.create(Users, map[string]any{
		"fullName": "Phạm Quốc Dũng", "email": "dung@dealerhub.vn", "role": "DealerStaff", "dealerId": saigon, "status": "Inactive",
	})

	s.create(DealerContracts, map[string]any{
		"dealerId": hanoi, "contractNumber": "HD-2024-001", "startDate": "2024-01-01", "endDate": "2025-12-31",
		"salesTarget": 120, "commissionRate": 3.5, "terms": "Annual volume contract",
	})
	s.create(DealerContracts, map[string]any{
		"dealerId": saigon, "contractNumber": "HD-2026-002", "startDate": "2026-01-01", "endDate": "2027-12-31",
		"salesTarget": 200, "commissionRate": 4, "terms": "Two-year exclusive distribution",
	})
	s.create(DealerContracts, map[string]any{
		"dealerId": danang, "contractNumber": "HD-2027-003", "startDate": "2027-06-01", "endDate": "2028-05-31",
		"salesTarget": 80, "commissionRate": 3, "terms": "Pending renewal",
	})

	khang := s.create(Customers, map[string]any{
		"fullName": "Hoàng Gia Khang", "phone": "0901000001", "email": "khang@example.com", "dealerId": hanoi,
	})
	linh := s.create(Customers, map[string]any{
		"fullName": "Võ Thùy Linh", "phone": "0901000002", "email": "linh@example.com", "dealerId": saigon,
	})

	vf8 := s.create(VehicleModels, map[string]any{
		"name": "VF 8", "brand": "VinFast", "segment": "D-SUV", "description": "Mid-size electric SUV", "status": "Active",
	})
	vfe34 := s.create(VehicleModels, map[string]any{
		"name": "VF e34", "brand": "VinFast", "segment": "C-SUV", "description": "Compact electric SUV", "status": "Discontinued",
	})

	vf8Eco := s.create(VehicleVariants, map[string]any{
		"modelId": vf8, "name": "VF 8 Eco", "color": "White", "batteryCapacity": 87.7, "rangeKm": 471, "price": 1090000000,
	})
	vf8Plus := s.create(VehicleVariants, map[string]any{
		"modelId": vf8, "name": "VF 8 Plus", "color": "Blue", "batteryCapacity": 87.7, "rangeKm": 457, "price": 1270000000,
	})
	e34 := s.create(VehicleVariants, map[string]any{
		"modelId": vfe34, "name": "VF e34 Standard", "color": "Red", "batteryCapacity": 42, "rangeKm": 318, "price": 710000000,
	})

	s.create(VehicleStock, map[string]any{
		"variantId": vf8Eco, "dealerId": hanoi, "vin": "RLLV8ECO000000001", "arrivedAt": "2026-03-02", "status": "Available",
	})
	s.create(VehicleStock, map[string]any{
		"variantId": vf8Plus, "dealerId": saigon, "vin": "RLLV8PLS000000002", "arrivedAt": "2026-04-15", "status": "Reserved",
	})
	s.create(VehicleStock, map[string]any{
		"variantId": e34, "dealerId": saigon, "vin": "RLLVE34S000000003", "arrivedAt": "2025-11-20", "status": "Sold",
	})

	s.create(Quotations, map[string]any{
		"dealerId": hanoi, "customerId": khang, "variantId": vf8Eco, "quantity": 1, "unitPrice": 1090000000,
		"discount": 40000000, "totalAmount": 1050000000, "validUntil": "2026-12-31", "status": "Sent",
	})

	order := s.create(SalesOrders, map[string]any{
		"dealerId": saigon, "customerId": linh, "variantId": e34, "quantity": 1, "totalAmount": 710000000,
		"orderDate": "2026-05-10", "deliveryDate": "2026-06-01", "status": "Delivered",
	})
	pending := s.create(SalesOrders, map[string]any{
		"dealerId": hanoi, "customerId": khang, "variantId": vf8Eco, "quantity": 1, "totalAmount": 1050000000,
		"orderDate": "2026-09-20", "status": "Pending",
	})

	s.create(Payments, map[string]any{
		"dealerId": saigon, "salesOrderId": order, "amount": 710000000, "method": "BankTransfer",
		"paidAt": "2026-05-12T09:30:00Z", "status": "Completed",
	})
	s.create(Payments, map[string]any{
		"dealerId": hanoi, "salesOrderId": pending, "amount": 105000000, "method": "Cash", "status": "Pending",
	})

	s.create(Feedback, map[string]any{
		"dealerId": saigon, "customerId": linh, "subject": "Giao xe đúng hẹn", "content": "Rất hài lòng với dịch vụ.",
		"rating": 5, "status": "Resolved",
	})
	s.create(Feedback, map[string]any{
		"dealerId": hanoi, "customerId": khang, "subject": "Thời gian chờ báo giá", "content": "Báo giá mất ba ngày.",
		"rating": 3, "status": "New",
	})

	return s.err
}

// sampler threads the first error through a run of creates so the sample
// data set reads top to bottom.
type sampler struct {
	ctx     context.Context
	records store.RecordStore
	err     error
}

func (s *sampler) create(collection string, fields map[string]any) string {
	if s.err != nil {
		return ""
	}
	rec, err := s.records.Create(s.ctx, collection, fields)
	if err != nil {
		s.err = fmt.Errorf("create %s: %w", collection, err)
		return ""
	}
	return rec.String(domain.KeyID)
}
