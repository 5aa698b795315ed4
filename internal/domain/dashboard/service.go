package dashboard

import (
	"context"

	"github.com/shopspring/decimal"
)

// The dashboard pulls one number from each clinical area, so each dependency
// is the narrowest possible slice of that area's service.

type PatientStats interface {
	CountActive(ctx context.Context) (int, error)
}

type AppointmentStats interface {
	CountToday(ctx context.Context) (int, error)
}

type PrescriptionStats interface {
	CountActive(ctx context.Context) (int, error)
}

type LaboratoryStats interface {
	CountPendingOrders(ctx context.Context) (int, error)
	CountOrderedToday(ctx context.Context) (int, error)
	CountUnverifiedCritical(ctx context.Context) (int, error)
}

type PharmacyStats interface {
	CountActiveMedications(ctx context.Context) (int, error)
	CountStockAlerts(ctx context.Context) (int, error)
	CountDispensedToday(ctx context.Context) (int, error)
}

type BillingStats interface {
	CountPendingInvoices(ctx context.Context) (int, error)
	CountOverdueInvoices(ctx context.Context) (int, error)
	PaymentsTotalToday(ctx context.Context) (decimal.Decimal, error)
}

type Summary struct {
	ActivePatients      int             `json:"active_patients"`
	AppointmentsToday   int             `json:"appointments_today"`
	ActivePrescriptions int             `json:"active_prescriptions"`
	PendingLabOrders    int             `json:"pending_lab_orders"`
	LabOrdersToday      int             `json:"lab_orders_today"`
	UnverifiedCritical  int             `json:"unverified_critical_results"`
	ActiveMedications   int             `json:"active_medications"`
	StockAlerts         int             `json:"stock_alerts"`
	DispensingsToday    int             `json:"dispensings_today"`
	PendingInvoices     int             `json:"pending_invoices"`
	OverdueInvoices     int             `json:"overdue_invoices"`
	PaymentsTotalToday  decimal.Decimal `json:"payments_total_today"`
}

type Service struct {
	patients      PatientStats
	appointments  AppointmentStats
	prescriptions PrescriptionStats
	laboratory    LaboratoryStats
	pharmacy      PharmacyStats
	billing       BillingStats
}

func NewService(patients PatientStats, appointments AppointmentStats,
	prescriptions PrescriptionStats, laboratory LaboratoryStats,
	pharmacy PharmacyStats, billing BillingStats) *Service {
	return &Service{
		patients:      patients,
		appointments:  appointments,
		prescriptions: prescriptions,
		laboratory:    laboratory,
		pharmacy:      pharmacy,
		billing:       billing,
	}
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var (
		sum Summary
		err error
	)
	if sum.ActivePatients, err = s.patients.CountActive(ctx); err != nil {
		return nil, err
	}
	if sum.AppointmentsToday, err = s.appointments.CountToday(ctx); err != nil {
		return nil, err
	}
	if sum.ActivePrescriptions, err = s.prescriptions.CountActive(ctx); err != nil {
		return nil, err
	}
	if sum.PendingLabOrders, err = s.laboratory.CountPendingOrders(ctx); err != nil {
		return nil, err
	}
	if sum.LabOrdersToday, err = s.laboratory.CountOrderedToday(ctx); err != nil {
		return nil, err
	}
	if sum.UnverifiedCritical, err = s.laboratory.CountUnverifiedCritical(ctx); err != nil {
		return nil, err
	}
	if sum.ActiveMedications, err = s.pharmacy.CountActiveMedications(ctx); err != nil {
		return nil, err
	}
	if sum.StockAlerts, err = s.pharmacy.CountStockAlerts(ctx); err != nil {
		return nil, err
	}
	if sum.DispensingsToday, err = s.pharmacy.CountDispensedToday(ctx); err != nil {
		return nil, err
	}
	if sum.PendingInvoices, err = s.billing.CountPendingInvoices(ctx); err != nil {
		return nil, err
	}
	if sum.OverdueInvoices, err = s.billing.CountOverdueInvoices(ctx); err != nil {
		return nil, err
	}
	if sum.PaymentsTotalToday, err = s.billing.PaymentsTotalToday(ctx); err != nil {
		return nil, err
	}
	return &sum, nil
}
