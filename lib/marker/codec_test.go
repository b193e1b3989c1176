package marker

import "testing"

func TestPlaceholderRoundTrip(t *testing.T) {
	c := Default()
	for _, f := range []string{"hello.txt", "sub/dir/hello.txt", "noext"} {
		ph := c.PlaceholderName(f)
		if !c.IsPlaceholder(ph) {
			t.Fatalf("%q not recognized as placeholder", ph)
		}
		if got := c.FromPlaceholder(ph); got != f {
			t.Fatalf("FromPlaceholder(%q) = %q, want %q", ph, got, f)
		}
		if c.IsLock(ph) || c.IsMessage(ph) {
			t.Fatalf("%q misclassified", ph)
		}
	}
}

func TestLockRoundTrip(t *testing.T) {
	c := Default()
	f := "dir/file.bin"
	lk := c.LockName(f)
	if lk != "dir/.file.bin.lock" {
		t.Fatalf("unexpected lock name %q", lk)
	}
	if !c.IsLock(lk) {
		t.Fatalf("%q not recognized as lock", lk)
	}
	if got := c.FromLock(lk); got != f {
		t.Fatalf("FromLock(%q) = %q, want %q", lk, got, f)
	}
}

func TestPlaceholderIdempotent(t *testing.T) {
	c := Default()
	f := "a/b.txt"
	once := c.PlaceholderName(f)
	twice := c.PlaceholderName(once)
	if once != twice {
		t.Fatalf("PlaceholderName not idempotent: %q != %q", once, twice)
	}
	lockOnce := c.LockName(f)
	lockTwice := c.LockName(lockOnce)
	if lockOnce != lockTwice {
		t.Fatalf("LockName not idempotent: %q != %q", lockOnce, lockTwice)
	}
}

func TestMessageNoHash(t *testing.T) {
	c := Default()
	name, err := c.MessageName("x")
	if err != nil {
		t.Fatal(err)
	}
	if name != ".x.message" {
		t.Fatalf("unexpected message name %q", name)
	}
	if !c.IsMessage(name) {
		t.Fatalf("%q not recognized as message", name)
	}
	if got := c.FromMessage(name); got != "x" {
		t.Fatalf("FromMessage(%q) = %q, want x", name, got)
	}
}

func TestMessageWithHash(t *testing.T) {
	c := Default()
	c.MessageHash = func(string) string { return "abc123" }
	name, err := c.MessageName("x")
	if err != nil {
		t.Fatal(err)
	}
	if name != ".x.abc123.message" {
		t.Fatalf("unexpected hashed message name %q", name)
	}
	if got := c.FromMessage(name); got != "x" {
		t.Fatalf("FromMessage(%q) = %q, want x", name, got)
	}
}

func TestMessageRejectsDottedHash(t *testing.T) {
	c := Default()
	c.MessageHash = func(string) string { return "bad.hash" }
	if _, err := c.MessageName("x"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestFromSpecial(t *testing.T) {
	c := Default()
	f := "p/q.dat"
	cases := map[string]string{
		c.PlaceholderName(f): f,
		c.LockName(f):         f,
	}
	for marker, want := range cases {
		got, err := c.FromSpecial(marker)
		if err != nil {
			t.Fatalf("FromSpecial(%q): %v", marker, err)
		}
		if got != want {
			t.Fatalf("FromSpecial(%q) = %q, want %q", marker, got, want)
		}
	}
	if _, err := c.FromSpecial(f); err != ErrNotSpecial {
		t.Fatalf("expected ErrNotSpecial for regular file, got %v", err)
	}
}

func TestDotfileNamedLikeALockClassifiesAsLock(t *testing.T) {
	c := Default()
	// A file literally named ".foo.lock" is the same name LockName("foo")
	// produces, so the codec classifies it as the lock on "foo". Such a file
	// never reaches the relay as a regular file because access.ListFiles
	// skips every dotfile.
	suspect := ".foo.lock"
	if !c.IsLock(suspect) {
		t.Fatalf("%q should classify as a lock", suspect)
	}
	if c.FromLock(suspect) != "foo" {
		t.Fatalf("FromLock(%q) should decode to foo", suspect)
	}
}
