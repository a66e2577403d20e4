package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"shopdesk/internal/domain"
)

const (
	LineExisting = "existing"
	LineNew      = "new"

	DefaultSupplier = "Unnamed Supplier"
)

type PurchaseLine struct {
	Mode       string
	ProductID  int64
	NewProduct domain.NewProductInput
	Quantity   int
	UnitPrice  decimal.Decimal
	SellPrice  decimal.Decimal
}

func (l PurchaseLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// PurchaseForm is a purchase order being entered. In edit mode the set of
// lines is fixed: only quantities and prices of existing lines may change.
type PurchaseForm struct {
	Date     string
	Supplier string
	Lines    []PurchaseLine
	EditMode bool
}

func NewPurchaseForm(now time.Time) *PurchaseForm {
	return &PurchaseForm{
		Date:  now.Format(time.DateOnly),
		Lines: []PurchaseLine{{Mode: LineExisting, Quantity: 1}},
	}
}

// PurchaseFormFrom loads a recorded purchase in edit mode.
func PurchaseFormFrom(p domain.Purchase) *PurchaseForm {
	date := p.PurchaseDate
	if idx := strings.IndexByte(date, 'T'); idx > 0 {
		date = date[:idx]
	}
	form := &PurchaseForm{Date: date, Supplier: p.Supplier, EditMode: true}
	for _, item := range p.Items {
		line := PurchaseLine{
			Mode:      LineExisting,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
		if item.Product != nil {
			line.SellPrice = item.Product.SellPrice
		}
		form.Lines = append(form.Lines, line)
	}
	return form
}

func (f *PurchaseForm) AddLine() error {
	if f.EditMode {
		return ErrEditLocked
	}
	f.Lines = append(f.Lines, PurchaseLine{Mode: LineExisting, Quantity: 1})
	return nil
}

// SelectProduct points line i at an existing product and fills in its prices.
func (f *PurchaseForm) SelectProduct(i int, p domain.Product) error {
	if i < 0 || i >= len(f.Lines) {
		return nil
	}
	if f.EditMode && f.Lines[i].ProductID != p.ID {
		return ErrEditLocked
	}
	line := &f.Lines[i]
	line.Mode = LineExisting
	line.ProductID = p.ID
	line.UnitPrice = p.BuyPrice
	line.SellPrice = p.SellPrice
	return nil
}

// UseNewProduct switches line i to registering a new product.
func (f *PurchaseForm) UseNewProduct(i int) error {
	if f.EditMode {
		return ErrEditLocked
	}
	if i < 0 || i >= len(f.Lines) {
		return nil
	}
	f.Lines[i] = PurchaseLine{
		Mode:       LineNew,
		NewProduct: domain.NewProductInput{Gender: domain.GenderUnisex},
		Quantity:   f.Lines[i].Quantity,
		UnitPrice:  f.Lines[i].UnitPrice,
	}
	return nil
}

func (f *PurchaseForm) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range f.Lines {
		total = total.Add(line.Total())
	}
	return total
}

func (f *PurchaseForm) Validate() error {
	errs := LineErrors{}
	if len(f.Lines) == 0 {
		errs[0] = []string{"add at least one item"}
		return errs
	}
	for i, line := range f.Lines {
		var msgs []string
		switch line.Mode {
		case LineNew:
			if strings.TrimSpace(line.NewProduct.Code) == "" || strings.TrimSpace(line.NewProduct.Name) == "" {
				msgs = append(msgs, "new product needs a code and a name")
			}
			if strings.TrimSpace(line.NewProduct.Category) == "" {
				msgs = append(msgs, "new product needs a category")
			}
			if line.NewProduct.SellPrice.IsNegative() {
				msgs = append(msgs, "selling price must not be negative")
			}
		default:
			if line.ProductID == 0 {
				msgs = append(msgs, "select an existing product")
			}
		}
		if line.UnitPrice.IsNegative() {
			msgs = append(msgs, "purchase price must not be negative")
		}
		if line.SellPrice.IsNegative() {
			msgs = append(msgs, "selling price must not be negative")
		}
		if line.Quantity <= 0 {
			msgs = append(msgs, "quantity must be at least 1")
		}
		if len(msgs) > 0 {
			errs[i] = msgs
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Input validates the form and builds the request body.
func (f *PurchaseForm) Input() (domain.PurchaseInput, error) {
	if err := f.Validate(); err != nil {
		return domain.PurchaseInput{}, err
	}
	supplier := strings.TrimSpace(f.Supplier)
	if supplier == "" {
		supplier = DefaultSupplier
	}
	in := domain.PurchaseInput{PurchaseDate: f.Date, Supplier: supplier}
	for _, line := range f.Lines {
		item := domain.PurchaseItemInput{Quantity: line.Quantity, UnitPrice: line.UnitPrice}
		if line.Mode == LineNew {
			np := line.NewProduct
			np.Code = strings.TrimSpace(np.Code)
			np.Name = strings.TrimSpace(np.Name)
			np.Gender = domain.NormalizeGender(np.Gender)
			item.Product = &np
		} else {
			id := line.ProductID
			sell := line.SellPrice
			item.ProductID = &id
			item.SellPrice = &sell
		}
		in.Items = append(in.Items, item)
	}
	return in, nil
}
