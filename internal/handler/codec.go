package handler

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/takeaway/internal/domain/checkout"
	"github.com/xenking/takeaway/internal/domain/fault"
	"github.com/xenking/takeaway/internal/domain/menu"
	"github.com/xenking/takeaway/internal/domain/order"
)

// Money is emitted as a JSON number, except order totals which clients
// historically receive as a two-decimal string.

func encodeMenuItem(e *jx.Encoder, it *menu.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(it.ID)
	e.FieldStart("name")
	e.Str(it.Name)
	if it.Description != "" {
		e.FieldStart("description")
		e.Str(it.Description)
	}
	e.FieldStart("price")
	e.RawStr(it.Price.String())
	e.FieldStart("isOutOfStock")
	e.Bool(it.IsOutOfStock)
	e.FieldStart("discount")
	e.Int(it.Discount)
	if it.Image != "" {
		e.FieldStart("image")
		e.Str(it.Image)
	}
	e.ObjEnd()
}

func encodeMenuItems(e *jx.Encoder, items []menu.Item) {
	e.ArrStart()
	for i := range items {
		encodeMenuItem(e, &items[i])
	}
	e.ArrEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(it.ID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("price")
		e.RawStr(it.Price.String())
		e.FieldStart("discount")
		e.Int(it.Discount)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total")
	e.Str(order.FormatTotal(o.Total))
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("timestamp")
	e.Str(order.FormatTimestamp(o.CreatedAt))
	e.FieldStart("lastStatusChangedAt")
	e.Str(order.FormatTimestamp(o.LastStatusChangedAt))
	optStr(e, "notation", o.Notation)
	optStr(e, "customerName", o.CustomerName)
	optStr(e, "customerPhone", o.CustomerPhone)
	optStr(e, "pickupDateTime", o.PickupDateTime)
	e.FieldStart("isDelivery")
	e.Bool(o.IsDelivery)
	e.FieldStart("paid")
	e.Bool(o.Paid)
	e.ObjEnd()
}

func encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.ArrStart()
	for i := range orders {
		encodeOrder(e, &orders[i])
	}
	e.ArrEnd()
}

func encodeCheckoutResult(e *jx.Encoder, res *checkout.Result) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(res.OrderID)
	e.FieldStart("paymentMethod")
	e.Str(string(res.Method))
	e.FieldStart("total")
	e.Str(order.FormatTotal(res.Total))
	if res.Order != nil {
		e.FieldStart("order")
		encodeOrder(e, res.Order)
	}
	if res.ClientSecret != "" {
		e.FieldStart("clientSecret")
		e.Str(res.ClientSecret)
		e.FieldStart("paymentIntentId")
		e.Str(res.PaymentIntentID)
	}
	e.ObjEnd()
}

func encodeReport(e *jx.Encoder, r *order.Report) {
	e.ObjStart()
	e.FieldStart("status")
	e.Str(string(r.Status))
	if r.From != nil {
		e.FieldStart("from")
		e.Str(order.FormatTimestamp(*r.From))
	}
	if r.To != nil {
		e.FieldStart("to")
		e.Str(order.FormatTimestamp(*r.To))
	}
	e.FieldStart("count")
	e.Int(r.Count)
	e.FieldStart("revenue")
	e.Str(order.FormatTotal(r.Revenue))
	e.FieldStart("orders")
	encodeOrders(e, r.Orders)
	e.ObjEnd()
}

func optStr(e *jx.Encoder, field, v string) {
	if v == "" {
		return
	}
	e.FieldStart(field)
	e.Str(v)
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder, field string) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	default:
		return decimal.Decimal{}, fault.Validation("%s must be a number", field)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fault.Validation("%s must be a number", field)
	}
	return v, nil
}

// decodeInt accepts integral JSON numbers, including values like 10.0.
func decodeInt(d *jx.Decoder, field string) (int, error) {
	v, err := decodeDecimal(d, field)
	if err != nil {
		return 0, err
	}
	if !v.IsInteger() {
		return 0, fault.Validation("%s must be an integer", field)
	}
	return int(v.IntPart()), nil
}

func decodeBool(d *jx.Decoder, field string) (bool, error) {
	if d.Next() != jx.Bool {
		return false, fault.Validation("%s must be a boolean", field)
	}
	return d.Bool()
}

func decodeStr(d *jx.Decoder, field string) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Null:
		return "", d.Null()
	default:
		return "", fault.Validation("%s must be a string", field)
	}
}

// menuBody is a decoded menu item payload. Presence of each field is kept so
// one decoder serves both create and partial update.
type menuBody struct {
	ID           string
	Name         *string
	Description  *string
	Price        *decimal.Decimal
	IsOutOfStock *bool
	Discount     *int
	Image        *string
}

func decodeMenuBody(d *jx.Decoder) (menuBody, error) {
	var b menuBody
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch k := string(key); k {
		case "id":
			v, err := decodeStr(d, k)
			b.ID = v
			return err
		case "name", "description", "image":
			v, err := decodeStr(d, k)
			if err != nil {
				return err
			}
			switch k {
			case "name":
				b.Name = &v
			case "description":
				b.Description = &v
			default:
				b.Image = &v
			}
			return nil
		case "price":
			v, err := decodeDecimal(d, k)
			b.Price = &v
			return err
		case "isOutOfStock":
			v, err := decodeBool(d, k)
			b.IsOutOfStock = &v
			return err
		case "discount":
			v, err := decodeInt(d, k)
			b.Discount = &v
			return err
		default:
			return d.Skip()
		}
	})
	return b, err
}

func (b menuBody) createInput() menu.CreateInput {
	in := menu.CreateInput{
		ID:           b.ID,
		Price:        b.Price,
		IsOutOfStock: b.IsOutOfStock,
		Discount:     b.Discount,
	}
	if b.Name != nil {
		in.Name = *b.Name
	}
	if b.Description != nil {
		in.Description = *b.Description
	}
	if b.Image != nil {
		in.Image = *b.Image
	}
	return in
}

func (b menuBody) patch() menu.Patch {
	return menu.Patch{
		Name:         b.Name,
		Description:  b.Description,
		Price:        b.Price,
		IsOutOfStock: b.IsOutOfStock,
		Discount:     b.Discount,
		Image:        b.Image,
	}
}

func decodeOrderItems(d *jx.Decoder) ([]order.Item, error) {
	var items []order.Item
	err := d.Arr(func(d *jx.Decoder) error {
		var it order.Item
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch k := string(key); k {
			case "id":
				it.ID, err = decodeStr(d, k)
			case "name":
				it.Name, err = decodeStr(d, k)
			case "price":
				it.Price, err = decodeDecimal(d, k)
			case "discount":
				it.Discount, err = decodeInt(d, k)
			case "quantity":
				it.Quantity, err = decodeInt(d, k)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		items = append(items, it)
		return nil
	})
	return items, err
}

func decodeOrderCreate(d *jx.Decoder) (order.CreateInput, error) {
	var in order.CreateInput
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch k := string(key); k {
		case "id":
			in.ID, err = decodeStr(d, k)
		case "items":
			in.Items, err = decodeOrderItems(d)
		case "total":
			var v decimal.Decimal
			v, err = decodeDecimal(d, k)
			in.Total = &v
		case "status":
			var s string
			if s, err = decodeStr(d, k); err == nil && s != "" {
				in.Status, err = order.ParseStatus(s)
			}
		case "timestamp":
			var s string
			if s, err = decodeStr(d, k); err == nil && s != "" {
				t, perr := order.ParseTimestamp(s)
				if perr != nil {
					return fault.Validation("invalid timestamp %q", s)
				}
				in.CreatedAt = &t
			}
		case "notation":
			in.Notation, err = decodeStr(d, k)
		case "customerName":
			in.CustomerName, err = decodeStr(d, k)
		case "customerPhone":
			in.CustomerPhone, err = decodeStr(d, k)
		case "pickupDateTime":
			in.PickupDateTime, err = decodeStr(d, k)
		case "isDelivery":
			in.IsDelivery, err = decodeBool(d, k)
		case "paid":
			in.Paid, err = decodeBool(d, k)
		default:
			err = d.Skip()
		}
		return err
	})
	return in, err
}

func decodeOrderPatch(d *jx.Decoder) (order.Patch, error) {
	var p order.Patch
	str := func(d *jx.Decoder, k string) (*string, error) {
		v, err := decodeStr(d, k)
		return &v, err
	}
	flag := func(d *jx.Decoder, k string) (*bool, error) {
		v, err := decodeBool(d, k)
		return &v, err
	}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch k := string(key); k {
		case "id":
			p.ID, err = decodeStr(d, k)
		case "status":
			var s string
			if s, err = decodeStr(d, k); err == nil && s != "" {
				var st order.Status
				st, err = order.ParseStatus(s)
				p.Status = &st
			}
		case "notation":
			p.Notation, err = str(d, k)
		case "customerName":
			p.CustomerName, err = str(d, k)
		case "customerPhone":
			p.CustomerPhone, err = str(d, k)
		case "pickupDateTime":
			p.PickupDateTime, err = str(d, k)
		case "isDelivery":
			p.IsDelivery, err = flag(d, k)
		case "paid":
			p.Paid, err = flag(d, k)
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}

func decodeCheckout(d *jx.Decoder) (checkout.Request, error) {
	var req checkout.Request
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch k := string(key); k {
		case "paymentMethod":
			var s string
			if s, err = decodeStr(d, k); err == nil && s != "" {
				req.Method, err = checkout.ParseMethod(s)
			}
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var l checkout.Line
				if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					var err error
					switch k := string(key); k {
					case "id":
						l.ID, err = decodeStr(d, k)
					case "quantity":
						l.Quantity, err = decodeInt(d, k)
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				req.Lines = append(req.Lines, l)
				return nil
			})
		case "orderId":
			req.OrderID, err = decodeStr(d, k)
		case "customerName":
			req.CustomerName, err = decodeStr(d, k)
		case "customerPhone":
			req.CustomerPhone, err = decodeStr(d, k)
		case "notation":
			req.Notation, err = decodeStr(d, k)
		case "pickupDateTime":
			req.PickupDateTime, err = decodeStr(d, k)
		case "isDelivery":
			req.IsDelivery, err = decodeBool(d, k)
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

// badJSON classifies a decoding failure. Typed validation errors raised
// while decoding are kept as they are.
func badJSON(err error) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return fe
	}
	return fault.Validation("malformed JSON body: %v", err)
}
