package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type item struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestHelper(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()
	c := NewHelper(client, "p:")

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	var got item
	if err := c.Get(ctx, "a", &got); !errors.Is(err, ErrCacheNotFound) {
		t.Fatalf("get missing: %v", err)
	}
	if err := c.Set(ctx, "a", item{"x", 2}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("p:a") {
		t.Fatal("key not prefixed")
	}
	if err := c.Get(ctx, "a", &got); err != nil || got != (item{"x", 2}) {
		t.Fatalf("get: %+v %v", got, err)
	}

	_ = c.Set(ctx, "b", item{"y", 1}, 0)
	_ = c.Set(ctx, "c", item{"z", 1}, 0)
	if err := c.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("p:a") || mr.Exists("p:b") || !mr.Exists("p:c") {
		t.Fatal("delete removed the wrong keys")
	}
	if err := c.Delete(ctx, "c"); err != nil || mr.Exists("p:c") {
		t.Fatalf("single delete: %v", err)
	}

}

func TestHelper_SetIfGeneration(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()
	c := NewHelper(client, "p:")

	gen, err := c.Generation(ctx, "g")
	if err != nil || gen != "0" {
		t.Fatalf("initial generation = %q, %v", gen, err)
	}
	stored, err := c.SetIfGeneration(ctx, "a", item{"x", 1}, time.Minute, "g", gen)
	if err != nil || !stored {
		t.Fatalf("set with current generation: stored=%v err=%v", stored, err)
	}

	if err := c.Bump(ctx, "g"); err != nil {
		t.Fatal(err)
	}
	stored, err = c.SetIfGeneration(ctx, "b", item{"y", 2}, time.Minute, "g", gen)
	if err != nil || stored {
		t.Fatalf("set with old generation: stored=%v err=%v", stored, err)
	}
	if mr.Exists("p:b") {
		t.Fatal("value written despite a newer generation")
	}
	if gen, _ := c.Generation(ctx, "g"); gen != "1" {
		t.Fatalf("generation after bump = %q", gen)
	}
}

func TestHelper_NilClient(t *testing.T) {
	c := NewHelper(nil, "p:")
	ctx := context.Background()
	var v item
	if err := c.Get(ctx, "a", &v); !errors.Is(err, ErrCacheNotAvailable) {
		t.Fatalf("get: %v", err)
	}
	if err := c.Set(ctx, "a", v, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.Ping(ctx); !errors.Is(err, ErrCacheNotAvailable) {
		t.Fatalf("ping: %v", err)
	}
	if _, err := c.Generation(ctx, "g"); !errors.Is(err, ErrCacheNotAvailable) {
		t.Fatalf("generation: %v", err)
	}
	if stored, err := c.SetIfGeneration(ctx, "a", v, time.Minute, "g", "0"); stored || err != nil {
		t.Fatalf("set if generation: %v %v", stored, err)
	}
}
