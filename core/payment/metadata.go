package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/irsalhamdi/e-learning/core/order"
	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/validate"
)

const (
	metaProducts        = "products"
	metaSubscriptionIDs = "subscriptionIds"
	metaUserID          = "userId"
	metaPromoID         = "promoId"
	metaPaymentType     = "paymentType"
)

// Stripe metadata limits.
const (
	maxMetadataKeys  = 50
	maxMetadataValue = 500
)

// Metadata correlates a provider customer with the purchase it was created
// for. It is stored on the customer as string values. The lists are JSON
// arrays split across numbered keys, products_0, products_1 and so on, so
// that no value exceeds the provider limit.
type Metadata struct {
	Products        []product.Ref
	SubscriptionIDs []string
	UserID          string
	PromoID         string
	PaymentType     order.PaymentType
}

func (m Metadata) Encode() (map[string]string, error) {
	kv := map[string]string{
		metaUserID:      m.UserID,
		metaPromoID:     m.PromoID,
		metaPaymentType: string(m.PaymentType),
	}

	if err := putList(kv, metaProducts, m.Products); err != nil {
		return nil, err
	}
	if err := putList(kv, metaSubscriptionIDs, m.SubscriptionIDs); err != nil {
		return nil, err
	}

	if len(kv) > maxMetadataKeys {
		return nil, errs.Newf(errs.Validation, "cart needs %d metadata keys, at most %d are allowed", len(kv), maxMetadataKeys)
	}
	return kv, nil
}

// putList stores list under key_0, key_1 and so on, packing as many
// elements into each value as fit.
func putList[T any](kv map[string]string, key string, list []T) error {
	var (
		chunks []string
		cur    []string
		size   = 2
	)
	flush := func() {
		chunks = append(chunks, "["+strings.Join(cur, ",")+"]")
		cur, size = nil, 2
	}

	for _, v := range list {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		if len(b)+2 > maxMetadataValue {
			return errs.Newf(errs.Validation, "%s element is too long to store", key)
		}

		grow := len(b)
		if len(cur) > 0 {
			grow++
		}
		if size+grow > maxMetadataValue {
			flush()
			grow = len(b)
		}
		cur = append(cur, string(b))
		size += grow
	}
	if len(cur) > 0 || len(chunks) == 0 {
		flush()
	}

	for i, c := range chunks {
		kv[key+"_"+strconv.Itoa(i)] = c
	}
	return nil
}

// getList reassembles a list written by putList. It reports false when no
// part of the list is present.
func getList[T any](md map[string]string, key string, list *[]T) (bool, error) {
	var found bool
	for i := 0; ; i++ {
		raw, ok := md[key+"_"+strconv.Itoa(i)]
		if !ok {
			return found, nil
		}
		found = true

		var part []T
		if err := json.Unmarshal([]byte(raw), &part); err != nil {
			return found, err
		}
		*list = append(*list, part...)
	}
}

func DecodeMetadata(md map[string]string) (Metadata, error) {
	m := Metadata{
		UserID:      md[metaUserID],
		PromoID:     md[metaPromoID],
		PaymentType: order.PaymentType(md[metaPaymentType]),
	}

	found, err := getList(md, metaSubscriptionIDs, &m.SubscriptionIDs)
	if err != nil {
		return Metadata{}, errs.Wrap(errs.Validation, err, "customer metadata has malformed subscription ids")
	}
	if !found {
		return Metadata{}, errs.New(errs.Validation, "customer metadata has no subscription ids")
	}
	if _, err := getList(md, metaProducts, &m.Products); err != nil {
		return Metadata{}, errs.Wrap(errs.Validation, err, "customer metadata has malformed products")
	}

	if m.UserID == "" || len(m.SubscriptionIDs) == 0 {
		return Metadata{}, errs.New(errs.Validation, "customer metadata does not describe a purchase")
	}
	return m, nil
}

// fitsMetadata reports whether a purchase of refs can be correlated
// through customer metadata. It runs before any subscription is stored, so
// ids are stood in for by ones of the same length.
func fitsMetadata(refs []product.Ref, promoID *string) error {
	ids := make([]string, len(refs))
	for i := range ids {
		ids[i] = validate.GenerateID()
	}

	md := Metadata{
		Products:        refs,
		SubscriptionIDs: ids,
		UserID:          validate.GenerateID(),
		PaymentType:     order.Stripe,
	}
	if promoID != nil {
		md.PromoID = *promoID
	}

	_, err := md.Encode()
	return err
}
