// Package transaction defines the call envelope that carries a method
// invocation across the host boundary.
package transaction

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/BadBoiLabs/cetf/go/common/cbor"
	"github.com/BadBoiLabs/cetf/go/common/crypto/hash"
)

// MethodSeparator separates the module name from the method name.
const MethodSeparator = "."

var (
	methodsLock sync.RWMutex
	methods     = make(map[MethodName]reflect.Type)
)

// Transaction is a method call.
type Transaction struct {
	// Nonce is the caller's sequence number.
	Nonce uint64 `json:"nonce"`
	// Method is the called method.
	Method MethodName `json:"method"`
	// Body is the CBOR encoded method parameters.
	Body cbor.RawMessage `json:"body,omitempty"`
}

// Hash returns the digest of the encoded transaction.
func (t *Transaction) Hash() hash.Hash {
	return hash.NewFrom(t)
}

// PrettyPrint writes a human readable rendition of the transaction, with
// the body decoded when the method is known.
func (t *Transaction) PrettyPrint(prefix string, w io.Writer) {
	fmt.Fprintf(w, "%sNonce:  %d\n", prefix, t.Nonce)
	fmt.Fprintf(w, "%sMethod: %s\n", prefix, t.Method)
	fmt.Fprintf(w, "%sBody:   %s\n", prefix, t.prettyBody(prefix+"  "))
}

func (t *Transaction) prettyBody(indent string) string {
	if len(t.Body) == 0 {
		return "<empty>"
	}
	typ := t.Method.BodyType()
	if typ == nil {
		return "<unknown method> " + hex.EncodeToString(t.Body)
	}

	v := reflect.New(typ).Interface()
	if err := cbor.Unmarshal(t.Body, v); err != nil {
		return fmt.Sprintf("<malformed: %s> %s", err, hex.EncodeToString(t.Body))
	}
	data, err := json.MarshalIndent(v, indent, "  ")
	if err != nil {
		return hex.EncodeToString(t.Body)
	}
	return string(data)
}

// SanityCheck checks that the method is registered.
func (t *Transaction) SanityCheck() error {
	return t.Method.SanityCheck()
}

// UnmarshalBody decodes the method parameters into dst. An empty body
// leaves dst untouched.
func (t *Transaction) UnmarshalBody(dst interface{}) error {
	if len(t.Body) == 0 {
		return nil
	}
	if err := cbor.Unmarshal(t.Body, dst); err != nil {
		return fmt.Errorf("transaction: malformed body for %s: %w", t.Method, err)
	}
	return nil
}

// NewTransaction creates a new transaction. A nil body is omitted.
func NewTransaction(nonce uint64, method MethodName, body interface{}) *Transaction {
	tx := &Transaction{
		Nonce:  nonce,
		Method: method,
	}
	if body != nil {
		tx.Body = cbor.Marshal(body)
	}
	return tx
}

// Decode decodes a CBOR encoded transaction and checks its method.
func Decode(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := cbor.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("transaction: malformed transaction: %w", err)
	}
	if err := tx.SanityCheck(); err != nil {
		return nil, err
	}
	return &tx, nil
}

// MethodName is a fully qualified method name.
type MethodName string

// SanityCheck checks that the method is registered.
func (m MethodName) SanityCheck() error {
	if m == "" {
		return fmt.Errorf("transaction: empty method")
	}

	methodsLock.RLock()
	defer methodsLock.RUnlock()

	if _, ok := methods[m]; !ok {
		return fmt.Errorf("transaction: unknown method: %s", m)
	}
	return nil
}

// Module returns the module part of the method name.
func (m MethodName) Module() string {
	module, _, _ := strings.Cut(string(m), MethodSeparator)
	return module
}

// BodyType returns the registered parameter type, or nil if the method is
// unknown or takes no parameters.
func (m MethodName) BodyType() reflect.Type {
	methodsLock.RLock()
	defer methodsLock.RUnlock()

	return methods[m]
}

// NewMethodName registers a method of module taking parameters shaped
// like bodyType (nil for none). It panics on duplicate registration.
func NewMethodName(module, method string, bodyType interface{}) MethodName {
	name := MethodName(module + MethodSeparator + method)

	methodsLock.Lock()
	defer methodsLock.Unlock()

	if _, ok := methods[name]; ok {
		panic(fmt.Errorf("transaction: method already registered: %s", name))
	}

	var typ reflect.Type
	if bodyType != nil {
		typ = reflect.TypeOf(bodyType)
		if typ.Kind() == reflect.Ptr {
			typ = typ.Elem()
		}
	}
	methods[name] = typ

	return name
}
