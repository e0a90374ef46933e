/*
Package mock provides an in-memory implementation of the kv.KV interface.

It stores data objects and counters in maps, can be pre-seeded, lets tests
override the outcome of individual operations, and records every call.

	m := mock.New(mock.Config{Seed: map[nvm3.ObjectKey][]byte{1: []byte("a")}})
	m.OnGet(2).ReturnError(kv.ErrKeyNotFound)
	m.OnIncrement(7).ReturnCounter(42)

	for _, c := range m.Calls() {
		// c.Op, c.Key, c.Value
	}
*/
package mock
