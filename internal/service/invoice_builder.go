package service

import (
	"context"
	"fmt"

	"go-repair-billing/internal/apperrors"
	"go-repair-billing/internal/model"
	"go-repair-billing/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (s *settlementService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest, userID string) (*InvoiceView, error) {
	var invoice *model.Invoice
	err := s.run(ctx, func(tx repository.Tx, box *outbox) error {
		var err error
		invoice, err = s.buildManual(tx, req, userID)
		if err != nil {
			return err
		}
		box.invoiceEvent(EventInvoiceCreated, "", invoice,
			fmt.Sprintf("%s created invoice %s", userID, invoice.InvoiceNumber))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &InvoiceView{Invoice: *invoice, TotalPaid: decimal.Zero, Remaining: invoice.TotalAmount}, nil
}

func (s *settlementService) CreateFromRepair(ctx context.Context, repairID uuid.UUID, req FromRepairRequest, userID string) (*InvoiceView, error) {
	var invoice *model.Invoice
	err := s.run(ctx, func(tx repository.Tx, box *outbox) error {
		var err error
		invoice, err = s.buildFromRepair(tx, repairID, req, userID)
		if err != nil {
			return err
		}
		box.invoiceEvent(EventInvoiceCreated, "from_repair", invoice,
			fmt.Sprintf("%s invoiced repair %s as %s", userID, repairID, invoice.InvoiceNumber))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &InvoiceView{Invoice: *invoice, TotalPaid: decimal.Zero, Remaining: invoice.TotalAmount}, nil
}

func (s *settlementService) buildManual(tx repository.Tx, req CreateInvoiceRequest, userID string) (*model.Invoice, error) {
	if !req.Kind.Valid() {
		return nil, apperrors.Validation("invalid invoice kind %q", req.Kind)
	}

	items := make([]model.InvoiceItem, 0, len(req.Items))
	for _, in := range req.Items {
		item, err := newItem(in, userID)
		if err != nil {
			return nil, err
		}
		if err := checkDuplicate(items, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	invoice := &model.Invoice{
		Kind:            req.Kind,
		RepairRequestID: req.RepairRequestID,
		CustomerID:      req.CustomerID,
		VendorID:        req.VendorID,
		Currency:        s.opts.DefaultCurrency,
		Status:          model.StatusDraft,
		IssueDate:       s.today(),
		DueDate:         req.DueDate.Ptr(),
		Notes:           req.Notes,
		Items:           items,
	}
	invoice.CreatedBy = userID
	invoice.UpdatedBy = userID
	if req.Currency != "" {
		invoice.Currency = req.Currency
	}
	if req.IssueDate != nil {
		invoice.IssueDate = truncateDate(req.IssueDate.Time)
	}

	if err := s.resolveLinks(tx, invoice); err != nil {
		return nil, err
	}
	if err := s.setRates(invoice, req.TaxRate, req.DiscountAmount); err != nil {
		return nil, err
	}
	if err := s.persistNew(tx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// resolveLinks enforces the counterparty rules: a sale names exactly one of
// repair or customer, a purchase names a vendor. Every named link must exist.
func (s *settlementService) resolveLinks(tx repository.Tx, invoice *model.Invoice) error {
	switch invoice.Kind {
	case model.InvoiceSale:
		if invoice.VendorID != nil {
			return apperrors.Validation("a sale invoice cannot reference a vendor")
		}
		hasRepair, hasCustomer := invoice.RepairRequestID != nil, invoice.CustomerID != nil
		if hasRepair == hasCustomer {
			return apperrors.Validation("a sale invoice needs exactly one of repairRequestId or customerId")
		}
		if hasRepair {
			_, err := s.claimRepair(tx, *invoice.RepairRequestID)
			return err
		}
		_, err := tx.Parties().FindCustomer(*invoice.CustomerID)
		return err

	case model.InvoicePurchase:
		if invoice.VendorID == nil {
			return apperrors.Validation("a purchase invoice needs a vendorId")
		}
		if invoice.RepairRequestID != nil || invoice.CustomerID != nil {
			return apperrors.Validation("a purchase invoice can only reference a vendor")
		}
		_, err := tx.Parties().FindVendor(*invoice.VendorID)
		return err
	}
	return apperrors.Validation("invalid invoice kind %q", invoice.Kind)
}

// claimRepair locks the repair row so two concurrent invoicing attempts for
// the same repair serialise, then rejects the second.
func (s *settlementService) claimRepair(tx repository.Tx, repairID uuid.UUID) (*model.RepairRequest, error) {
	repair, err := tx.Repairs().FindByIDForUpdate(repairID)
	if err != nil {
		return nil, err
	}
	if repair.Status == model.RepairCancelled {
		return nil, apperrors.Conflict("repair request %s is cancelled", repairID)
	}
	invoiced, err := tx.Invoices().ExistsForRepair(repairID)
	if err != nil {
		return nil, err
	}
	if invoiced {
		return nil, fmt.Errorf("repair request %s: %w", repairID, apperrors.ErrAlreadyInvoiced)
	}
	return repair, nil
}

func (s *settlementService) setRates(invoice *model.Invoice, taxRate, discount *decimal.Decimal) error {
	invoice.TaxRate = s.opts.DefaultTaxRate
	if taxRate != nil {
		invoice.TaxRate = *taxRate
	}
	if invoice.TaxRate.IsNegative() || invoice.TaxRate.GreaterThan(hundred) {
		return apperrors.Validation("taxRate must be between 0 and 100")
	}
	invoice.DiscountAmount = decimal.Zero
	if discount != nil {
		invoice.DiscountAmount = discount.Round(2)
	}
	if invoice.DiscountAmount.IsNegative() {
		return apperrors.Validation("discountAmount cannot be negative")
	}
	if invoice.DueDate != nil {
		due := truncateDate(*invoice.DueDate)
		if due.Before(invoice.IssueDate) {
			return apperrors.Validation("dueDate cannot be before issueDate")
		}
		invoice.DueDate = &due
	}
	return nil
}

func (s *settlementService) persistNew(tx repository.Tx, invoice *model.Invoice) error {
	number, err := s.opts.Numberer.Next(tx, s.now())
	if err != nil {
		return err
	}
	invoice.InvoiceNumber = number
	applyTotals(invoice)
	return tx.Invoices().Create(invoice)
}

func (s *settlementService) buildFromRepair(tx repository.Tx, repairID uuid.UUID, req FromRepairRequest, userID string) (*model.Invoice, error) {
	repair, err := s.claimRepair(tx, repairID)
	if err != nil {
		return nil, err
	}

	services, err := s.serviceLines(tx, repairID, userID)
	if err != nil {
		return nil, err
	}
	parts, err := s.partLines(tx, repairID, userID)
	if err != nil {
		return nil, err
	}
	items := append(services, parts...)
	if repair.LaborCost != nil && repair.LaborCost.IsPositive() {
		labor := model.InvoiceItem{
			Description: "Labor",
			Quantity:    1,
			UnitPrice:   repair.LaborCost.Round(2),
			Kind:        model.ItemService,
		}
		labor.CreatedBy = userID
		labor.UpdatedBy = userID
		items = append(items, labor)
	}

	invoice := &model.Invoice{
		Kind:            model.InvoiceSale,
		RepairRequestID: &repair.ID,
		Currency:        s.opts.DefaultCurrency,
		Status:          model.StatusDraft,
		IssueDate:       s.today(),
		DueDate:         req.DueDate.Ptr(),
		Notes:           req.Notes,
		Items:           items,
	}
	invoice.CreatedBy = userID
	invoice.UpdatedBy = userID

	if err := s.setRates(invoice, req.TaxRate, req.DiscountAmount); err != nil {
		return nil, err
	}
	if err := s.persistNew(tx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// readSource runs one item source in a savepoint. A failing source yields
// no lines instead of failing the invoice, unless the scope itself is gone.
func (s *settlementService) readSource(tx repository.Tx, source string, repairID uuid.UUID, read func(sp repository.Tx) error) error {
	err := tx.Savepoint(read)
	if err == nil {
		return nil
	}
	if isAbort(tx, err) {
		return err
	}
	s.log.Warn().Err(err).
		Str("source", source).
		Str("repair_id", repairID.String()).
		Msg("repair item source unavailable, continuing without it")
	return nil
}

// serviceLines bills completed services. Repeats of one catalog service
// collapse into a single line so the invoice holds one line per service.
func (s *settlementService) serviceLines(tx repository.Tx, repairID uuid.UUID, userID string) ([]model.InvoiceItem, error) {
	var services []model.RepairService
	err := s.readSource(tx, "services", repairID, func(sp repository.Tx) error {
		var err error
		services, err = sp.Repairs().CompletedServices(repairID)
		return err
	})
	if err != nil {
		return nil, err
	}

	var lines []model.InvoiceItem
	index := make(map[uuid.UUID]int)
	for _, svc := range services {
		if at, ok := index[svc.ServiceID]; ok {
			lines[at].Quantity++
			continue
		}
		serviceID := svc.ServiceID
		line := model.InvoiceItem{
			Description: svc.Name,
			Quantity:    1,
			UnitPrice:   svc.BillablePrice().Round(2),
			Kind:        model.ItemService,
			ServiceID:   &serviceID,
		}
		line.CreatedBy = userID
		line.UpdatedBy = userID
		index[svc.ServiceID] = len(lines)
		lines = append(lines, line)
	}
	return lines, nil
}

// partLines bills consumed parts at their selling price, one line per
// inventory item with the consumed quantities added up.
func (s *settlementService) partLines(tx repository.Tx, repairID uuid.UUID, userID string) ([]model.InvoiceItem, error) {
	var parts []model.RepairPart
	err := s.readSource(tx, "parts", repairID, func(sp repository.Tx) error {
		var err error
		parts, err = sp.Repairs().ConsumedParts(repairID)
		return err
	})
	if err != nil {
		return nil, err
	}

	var lines []model.InvoiceItem
	index := make(map[uuid.UUID]int)
	for _, part := range parts {
		if at, ok := index[part.InventoryItemID]; ok {
			lines[at].Quantity += part.Quantity
			continue
		}
		inventoryID := part.InventoryItemID
		line := model.InvoiceItem{
			Description:     part.Name,
			Quantity:        part.Quantity,
			UnitPrice:       part.SellingPrice.Round(2),
			Kind:            model.ItemPart,
			InventoryItemID: &inventoryID,
		}
		line.CreatedBy = userID
		line.UpdatedBy = userID
		index[part.InventoryItemID] = len(lines)
		lines = append(lines, line)
	}
	return lines, nil
}

func newItem(in ItemInput, userID string) (model.InvoiceItem, error) {
	if in.Description == "" {
		return model.InvoiceItem{}, apperrors.Validation("item description is required")
	}
	if in.Quantity <= 0 {
		return model.InvoiceItem{}, apperrors.Validation("item quantity must be greater than zero")
	}
	if in.UnitPrice.IsNegative() {
		return model.InvoiceItem{}, apperrors.Validation("item unitPrice cannot be negative")
	}
	if !in.Kind.Valid() {
		return model.InvoiceItem{}, apperrors.Validation("invalid item kind %q", in.Kind)
	}
	item := model.InvoiceItem{
		Description:     in.Description,
		Quantity:        in.Quantity,
		UnitPrice:       in.UnitPrice.Round(2),
		Kind:            in.Kind,
		ServiceID:       in.ServiceID,
		InventoryItemID: in.InventoryItemID,
	}
	item.CreatedBy = userID
	item.UpdatedBy = userID
	item.Recalculate()
	return item, nil
}

// checkDuplicate rejects candidate when another line already points at the
// same service or inventory item.
func checkDuplicate(existing []model.InvoiceItem, candidate *model.InvoiceItem) error {
	for i := range existing {
		if existing[i].ID != uuid.Nil && existing[i].ID == candidate.ID {
			continue
		}
		if existing[i].SameReference(candidate) {
			return fmt.Errorf("%q: %w", candidate.Description, apperrors.ErrDuplicateItem)
		}
	}
	return nil
}
