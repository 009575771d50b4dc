package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"relic-services/db"
	"relic-services/ledger"
	"relic-services/payout"
	"relic-services/types"
	"sync"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/ninja-software/terror/v2"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var conn *pgxpool.Pool

// well known dev key, never holds value
const testSignerKey = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"

func TestMain(m *testing.M) {
	fmt.Println("Spinning up docker container for postgres...")

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not connect to docker: %s", err)
	}

	user := "test"
	password := "dev"
	dbName := "test"

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "13-alpine",
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbName,
		},
	}, func(config *docker.HostConfig) {
		// stopped container goes away by itself
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		log.Fatalf("Could not start resource: %s", err)
	}

	err = resource.Expire(120) // hard kill the container after 2 minutes
	if err != nil {
		log.Fatalf("Could not start resource: %s", err)
	}

	// exponential backoff-retry, the container might not be ready to accept connections yet
	if err := pool.Retry(func() error {
		ctx := context.Background()
		connString := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			user,
			password,
			"localhost",
			resource.GetPort("5432/tcp"),
			dbName,
		)

		pgxPoolConfig, err := pgxpool.ParseConfig(connString)
		if err != nil {
			return terror.Error(err, "")
		}

		conn, err = pgxpool.ConnectConfig(ctx, pgxPoolConfig)
		if err != nil {
			return terror.Error(err, "")
		}

		fmt.Println("Running Migration...")

		source, err := httpfs.New(http.FS(db.Migrations), "migrations")
		if err != nil {
			log.Fatal(err)
		}

		mig, err := migrate.NewWithSourceInstance("embed", source, connString)
		if err != nil {
			log.Fatal(err)
		}
		if err := mig.Up(); err != nil {
			log.Fatal(err)
		}
		source.Close()

		fmt.Println("Postgres Ready.")

		return nil
	}); err != nil {
		log.Fatalf("Could not connect to docker: %s", err)
	}

	fmt.Println("Running tests...")
	code := m.Run()

	if err := pool.Purge(resource); err != nil {
		log.Fatalf("Could not purge resource: %s", err)
	}

	os.Exit(code)
}

func testLedger(t *testing.T, policy types.OverpaymentPolicy) *ledger.Ledger {
	t.Helper()
	signer, err := payout.NewKeySigner(testSignerKey)
	if err != nil {
		t.Fatal(err)
	}
	logger := zerolog.Nop()
	return ledger.New(conn, &logger, signer, policy)
}

func addr(t *testing.T, hex string) types.Address {
	t.Helper()
	a, err := types.AddressFromHex(hex)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

var addrSeq int

// freshAddr hands out unique holder addresses so tests do not share
// balances
func freshAddr(t *testing.T) types.Address {
	t.Helper()
	addrSeq++
	return addr(t, fmt.Sprintf("0x%040x", 0xA000+addrSeq))
}

func mustMint(t *testing.T, l *ledger.Ledger, owner types.Address) types.AssetID {
	t.Helper()
	id, err := l.Mint(context.Background(), owner, fmt.Sprintf("blob://test-%d", addrSeq))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestMint(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t, types.OverpaymentRefund)
	owner := freshAddr(t)

	t.Run("mint_assigns_owner_and_locator", func(t *testing.T) {
		id, err := l.Mint(ctx, owner, "blob://loc1")
		if err != nil {
			t.Fatal(err)
		}
		got, err := l.OwnerOf(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if got != owner {
			t.Fatalf("owner = %s, want %s", got, owner)
		}
		locator, err := l.LocatorOf(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if locator != "blob://loc1" {
			t.Fatalf("locator = %s", locator)
		}
	})

	t.Run("same_locator_twice_gets_distinct_ids", func(t *testing.T) {
		id1, err := l.Mint(ctx, owner, "blob://dup")
		if err != nil {
			t.Fatal(err)
		}
		other := freshAddr(t)
		id2, err := l.Mint(ctx, other, "blob://dup")
		if err != nil {
			t.Fatal(err)
		}
		if id1 == id2 {
			t.Fatal("expected distinct asset ids")
		}
		if id2 <= id1 {
			t.Fatalf("ids not monotonic: %d then %d", id1, id2)
		}
		o2, err := l.OwnerOf(ctx, id2)
		if err != nil {
			t.Fatal(err)
		}
		if o2 != other {
			t.Fatal("ownership not independent")
		}
	})

	t.Run("empty_locator_rejected", func(t *testing.T) {
		_, err := l.Mint(ctx, owner, "")
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("nil_owner_rejected", func(t *testing.T) {
		_, err := l.Mint(ctx, types.Address(""), "blob://loc")
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("second_bind_rejected", func(t *testing.T) {
		id := mustMint(t, l, owner)
		err := db.MetadataBind(ctx, conn, id, "blob://other")
		if !errors.Is(err, types.ErrAlreadyBound) {
			t.Fatalf("err = %v, want ErrAlreadyBound", err)
		}
	})

	t.Run("unknown_asset", func(t *testing.T) {
		_, err := l.OwnerOf(ctx, types.AssetID(99999999))
		if !errors.Is(err, types.ErrUnknownAsset) {
			t.Fatalf("err = %v, want ErrUnknownAsset", err)
		}
	})
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t, types.OverpaymentRefund)
	owner := freshAddr(t)
	stranger := freshAddr(t)
	assetID := mustMint(t, l, owner)
	price := decimal.NewFromInt(100)

	t.Run("non_owner_cannot_list", func(t *testing.T) {
		_, err := l.CreateListing(ctx, assetID, price, stranger)
		if !errors.Is(err, types.ErrNotOwner) {
			t.Fatalf("err = %v, want ErrNotOwner", err)
		}
	})

	t.Run("zero_price_rejected", func(t *testing.T) {
		_, err := l.CreateListing(ctx, assetID, decimal.Zero, owner)
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("fractional_price_rejected", func(t *testing.T) {
		// amounts are whole units of the smallest denomination; a
		// fractional price must fail up front, not get rounded by the
		// numeric column
		_, err := l.CreateListing(ctx, assetID, decimal.NewFromFloat(10.5), owner)
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
		_, err = l.CreateListing(ctx, assetID, decimal.NewFromFloat(0.4), owner)
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
		listing, err := l.ActiveListing(ctx, assetID)
		if err != nil {
			t.Fatal(err)
		}
		if listing != nil {
			t.Fatal("no listing may exist after rejected creates")
		}
	})

	t.Run("owner_lists", func(t *testing.T) {
		created, err := l.CreateListing(ctx, assetID, price, owner)
		if err != nil {
			t.Fatal(err)
		}
		if !created.Price.Equal(price) || created.Lister != owner {
			t.Fatalf("created listing = %+v", created)
		}
		listing, err := l.ActiveListing(ctx, assetID)
		if err != nil {
			t.Fatal(err)
		}
		if listing == nil {
			t.Fatal("expected active listing")
		}
		if !listing.Price.Equal(price) || listing.Lister != owner {
			t.Fatalf("listing = %+v", listing)
		}
	})

	t.Run("double_list_rejected", func(t *testing.T) {
		_, err := l.CreateListing(ctx, assetID, price, owner)
		if !errors.Is(err, types.ErrAlreadyListed) {
			t.Fatalf("err = %v, want ErrAlreadyListed", err)
		}
	})

	t.Run("non_lister_cannot_cancel", func(t *testing.T) {
		err := l.CancelListing(ctx, assetID, stranger)
		if !errors.Is(err, types.ErrNotOwner) {
			t.Fatalf("err = %v, want ErrNotOwner", err)
		}
		listing, err := l.ActiveListing(ctx, assetID)
		if err != nil {
			t.Fatal(err)
		}
		if listing == nil {
			t.Fatal("listing should survive a rejected cancel")
		}
	})

	t.Run("lister_cancels", func(t *testing.T) {
		err := l.CancelListing(ctx, assetID, owner)
		if err != nil {
			t.Fatal(err)
		}
		listing, err := l.ActiveListing(ctx, assetID)
		if err != nil {
			t.Fatal(err)
		}
		if listing != nil {
			t.Fatal("listing should be gone")
		}
	})

	t.Run("cancel_unlisted_rejected", func(t *testing.T) {
		err := l.CancelListing(ctx, assetID, owner)
		if !errors.Is(err, types.ErrNotListed) {
			t.Fatalf("err = %v, want ErrNotListed", err)
		}
	})

	t.Run("buy_after_cancel_rejected", func(t *testing.T) {
		buyer := freshAddr(t)
		_, err := l.Buy(ctx, assetID, buyer, price)
		if !errors.Is(err, types.ErrNotListed) {
			t.Fatalf("err = %v, want ErrNotListed", err)
		}
	})
}

func TestBuy(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t, types.OverpaymentRefund)
	price := decimal.NewFromInt(100)

	t.Run("full_sale_scenario", func(t *testing.T) {
		seller := freshAddr(t)
		buyer := freshAddr(t)
		assetID := mustMint(t, l, seller)

		_, err := l.CreateListing(ctx, assetID, price, seller)
		if err != nil {
			t.Fatal(err)
		}

		receipt, err := l.Buy(ctx, assetID, buyer, price)
		if err != nil {
			t.Fatal(err)
		}
		if !receipt.Price.Equal(price) || !receipt.Refund.IsZero() {
			t.Fatalf("receipt = %+v", receipt)
		}

		newOwner, err := l.OwnerOf(ctx, assetID)
		if err != nil {
			t.Fatal(err)
		}
		if newOwner != buyer {
			t.Fatalf("owner = %s, want %s", newOwner, buyer)
		}

		listing, err := l.ActiveListing(ctx, assetID)
		if err != nil {
			t.Fatal(err)
		}
		if listing != nil {
			t.Fatal("listing should be removed by the sale")
		}

		balance, err := l.BalanceOf(ctx, seller)
		if err != nil {
			t.Fatal(err)
		}
		if !balance.Equal(price) {
			t.Fatalf("seller balance = %s, want %s", balance, price)
		}
	})

	t.Run("underpayment_rejected_and_nothing_moves", func(t *testing.T) {
		seller := freshAddr(t)
		buyer := freshAddr(t)
		assetID := mustMint(t, l, seller)
		_, err := l.CreateListing(ctx, assetID, price, seller)
		if err != nil {
			t.Fatal(err)
		}

		_, err = l.Buy(ctx, assetID, buyer, decimal.NewFromInt(50))
		if !errors.Is(err, types.ErrInsufficientPayment) {
			t.Fatalf("err = %v, want ErrInsufficientPayment", err)
		}

		owner, err := l.OwnerOf(ctx, assetID)
		if err != nil {
			t.Fatal(err)
		}
		if owner != seller {
			t.Fatal("ownership must not change on failed buy")
		}
		balance, err := l.BalanceOf(ctx, seller)
		if err != nil {
			t.Fatal(err)
		}
		if !balance.IsZero() {
			t.Fatal("balance must not change on failed buy")
		}
		listing, err := l.ActiveListing(ctx, assetID)
		if err != nil {
			t.Fatal(err)
		}
		if listing == nil {
			t.Fatal("listing must survive a failed buy")
		}
	})

	t.Run("overpayment_refunded", func(t *testing.T) {
		seller := freshAddr(t)
		buyer := freshAddr(t)
		assetID := mustMint(t, l, seller)
		_, err := l.CreateListing(ctx, assetID, price, seller)
		if err != nil {
			t.Fatal(err)
		}

		receipt, err := l.Buy(ctx, assetID, buyer, decimal.NewFromInt(130))
		if err != nil {
			t.Fatal(err)
		}
		if !receipt.Refund.Equal(decimal.NewFromInt(30)) {
			t.Fatalf("refund = %s, want 30", receipt.Refund)
		}
		// the seller is credited the listing price only
		balance, err := l.BalanceOf(ctx, seller)
		if err != nil {
			t.Fatal(err)
		}
		if !balance.Equal(price) {
			t.Fatalf("seller balance = %s, want %s", balance, price)
		}
	})

	t.Run("exact_payment_policy_rejects_overpayment", func(t *testing.T) {
		strict := testLedger(t, types.OverpaymentReject)
		seller := freshAddr(t)
		buyer := freshAddr(t)
		assetID := mustMint(t, strict, seller)
		_, err := strict.CreateListing(ctx, assetID, price, seller)
		if err != nil {
			t.Fatal(err)
		}

		_, err = strict.Buy(ctx, assetID, buyer, decimal.NewFromInt(101))
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
		_, err = strict.Buy(ctx, assetID, buyer, price)
		if err != nil {
			t.Fatal(err)
		}
	})

	t.Run("fractional_payment_rejected", func(t *testing.T) {
		seller := freshAddr(t)
		buyer := freshAddr(t)
		assetID := mustMint(t, l, seller)
		_, err := l.CreateListing(ctx, assetID, price, seller)
		if err != nil {
			t.Fatal(err)
		}

		_, err = l.Buy(ctx, assetID, buyer, decimal.NewFromFloat(100.5))
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
		owner, err := l.OwnerOf(ctx, assetID)
		if err != nil {
			t.Fatal(err)
		}
		if owner != seller {
			t.Fatal("ownership must not change on rejected payment")
		}
	})

	t.Run("stale_listing_rejected", func(t *testing.T) {
		seller := freshAddr(t)
		buyer := freshAddr(t)
		interloper := freshAddr(t)
		assetID := mustMint(t, l, seller)
		_, err := l.CreateListing(ctx, assetID, price, seller)
		if err != nil {
			t.Fatal(err)
		}

		// force an owner change underneath the listing, bypassing the
		// transfer path that would have dropped it
		_, err = conn.Exec(ctx, `UPDATE assets SET owner_address = $2 WHERE id = $1`, assetID, interloper)
		if err != nil {
			t.Fatal(err)
		}

		_, err = l.Buy(ctx, assetID, buyer, price)
		if !errors.Is(err, types.ErrStaleListing) {
			t.Fatalf("err = %v, want ErrStaleListing", err)
		}

		owner, err := l.OwnerOf(ctx, assetID)
		if err != nil {
			t.Fatal(err)
		}
		if owner != interloper {
			t.Fatal("ownership must not change on a stale listing")
		}
		listing, err := l.ActiveListing(ctx, assetID)
		if err != nil {
			t.Fatal(err)
		}
		if listing == nil {
			t.Fatal("listing must survive the failed buy")
		}
		balance, err := l.BalanceOf(ctx, seller)
		if err != nil {
			t.Fatal(err)
		}
		if !balance.IsZero() {
			t.Fatal("no credit may be made on a stale listing")
		}
	})

	t.Run("self_purchase_rejected", func(t *testing.T) {
		seller := freshAddr(t)
		assetID := mustMint(t, l, seller)
		_, err := l.CreateListing(ctx, assetID, price, seller)
		if err != nil {
			t.Fatal(err)
		}

		_, err = l.Buy(ctx, assetID, seller, price)
		if !errors.Is(err, types.ErrSelfPurchase) {
			t.Fatalf("err = %v, want ErrSelfPurchase", err)
		}
	})

	t.Run("concurrent_buyers_settle_exactly_once", func(t *testing.T) {
		seller := freshAddr(t)
		assetID := mustMint(t, l, seller)
		_, err := l.CreateListing(ctx, assetID, price, seller)
		if err != nil {
			t.Fatal(err)
		}

		buyers := []types.Address{freshAddr(t), freshAddr(t), freshAddr(t)}
		errs := make([]error, len(buyers))
		var wg sync.WaitGroup
		for i, buyer := range buyers {
			wg.Add(1)
			go func(i int, buyer types.Address) {
				defer wg.Done()
				_, errs[i] = l.Buy(ctx, assetID, buyer, price)
			}(i, buyer)
		}
		wg.Wait()

		won := 0
		for _, err := range errs {
			if err == nil {
				won++
				continue
			}
			if !errors.Is(err, types.ErrNotListed) {
				t.Fatalf("loser err = %v, want ErrNotListed", err)
			}
		}
		if won != 1 {
			t.Fatalf("sales settled = %d, want exactly 1", won)
		}

		balance, err := l.BalanceOf(ctx, seller)
		if err != nil {
			t.Fatal(err)
		}
		if !balance.Equal(price) {
			t.Fatalf("seller credited %s, want exactly %s", balance, price)
		}
	})
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t, types.OverpaymentRefund)
	owner := freshAddr(t)
	other := freshAddr(t)

	t.Run("non_owner_cannot_transfer", func(t *testing.T) {
		assetID := mustMint(t, l, owner)
		err := l.Transfer(ctx, assetID, other, other)
		if !errors.Is(err, types.ErrNotOwner) {
			t.Fatalf("err = %v, want ErrNotOwner", err)
		}
	})

	t.Run("nil_destination_rejected", func(t *testing.T) {
		assetID := mustMint(t, l, owner)
		err := l.Transfer(ctx, assetID, owner, types.Address(""))
		if !errors.Is(err, types.ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("transfer_drops_listing", func(t *testing.T) {
		assetID := mustMint(t, l, owner)
		_, err := l.CreateListing(ctx, assetID, decimal.NewFromInt(100), owner)
		if err != nil {
			t.Fatal(err)
		}

		err = l.Transfer(ctx, assetID, owner, other)
		if err != nil {
			t.Fatal(err)
		}

		newOwner, err := l.OwnerOf(ctx, assetID)
		if err != nil {
			t.Fatal(err)
		}
		if newOwner != other {
			t.Fatalf("owner = %s, want %s", newOwner, other)
		}
		listing, err := l.ActiveListing(ctx, assetID)
		if err != nil {
			t.Fatal(err)
		}
		if listing != nil {
			t.Fatal("no stale listing may survive an ownership change")
		}
	})
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t, types.OverpaymentRefund)
	price := decimal.NewFromInt(250)

	t.Run("nothing_to_withdraw", func(t *testing.T) {
		_, err := l.Withdraw(ctx, freshAddr(t))
		if !errors.Is(err, types.ErrNothingToWithdraw) {
			t.Fatalf("err = %v, want ErrNothingToWithdraw", err)
		}
	})

	t.Run("withdraw_pays_full_balance_once", func(t *testing.T) {
		seller := freshAddr(t)
		buyer := freshAddr(t)
		assetID := mustMint(t, l, seller)
		_, err := l.CreateListing(ctx, assetID, price, seller)
		if err != nil {
			t.Fatal(err)
		}
		_, err = l.Buy(ctx, assetID, buyer, price)
		if err != nil {
			t.Fatal(err)
		}

		withdrawal, err := l.Withdraw(ctx, seller)
		if err != nil {
			t.Fatal(err)
		}
		if !withdrawal.Amount.Equal(price) {
			t.Fatalf("withdrawal amount = %s, want %s", withdrawal.Amount, price)
		}

		// the voucher must recover to the operator key
		signer, err := payout.NewKeySigner(testSignerKey)
		if err != nil {
			t.Fatal(err)
		}
		recovered, err := payout.RecoverSigner(withdrawal.Holder, withdrawal.Amount, withdrawal.Nonce, withdrawal.Signature)
		if err != nil {
			t.Fatal(err)
		}
		if recovered != signer.OperatorAddress() {
			t.Fatalf("voucher recovered to %s, want %s", recovered, signer.OperatorAddress())
		}

		balance, err := l.BalanceOf(ctx, seller)
		if err != nil {
			t.Fatal(err)
		}
		if !balance.IsZero() {
			t.Fatalf("balance = %s, want 0", balance)
		}

		_, err = l.Withdraw(ctx, seller)
		if !errors.Is(err, types.ErrNothingToWithdraw) {
			t.Fatalf("second withdraw err = %v, want ErrNothingToWithdraw", err)
		}
	})
}

// TestConservation checks that value is never lost or duplicated: at any
// point, outstanding balances plus everything already withdrawn equals the
// total of settled sale prices.
func TestConservation(t *testing.T) {
	ctx := context.Background()
	l := testLedger(t, types.OverpaymentRefund)

	checkConservation := func(t *testing.T) {
		t.Helper()
		balances, err := db.BalanceSum(ctx, conn)
		if err != nil {
			t.Fatal(err)
		}
		withdrawn, err := db.WithdrawalSum(ctx, conn)
		if err != nil {
			t.Fatal(err)
		}
		sales, err := db.TransactionSumByGroup(ctx, conn, types.TransactionGroupSale)
		if err != nil {
			t.Fatal(err)
		}
		if !balances.Add(withdrawn).Equal(sales) {
			t.Fatalf("conservation broken: balances %s + withdrawn %s != sales %s", balances, withdrawn, sales)
		}
	}

	checkConservation(t)

	sellerA := freshAddr(t)
	sellerB := freshAddr(t)
	buyer := freshAddr(t)

	for i, price := range []decimal.Decimal{
		decimal.NewFromInt(100),
		decimal.NewFromInt(75),
		decimal.NewFromInt(4999),
	} {
		seller := sellerA
		if i%2 == 1 {
			seller = sellerB
		}
		assetID := mustMint(t, l, seller)
		_, err := l.CreateListing(ctx, assetID, price, seller)
		if err != nil {
			t.Fatal(err)
		}
		// overpay to confirm the excess never leaks into balances
		_, err = l.Buy(ctx, assetID, buyer, price.Add(decimal.NewFromInt(7)))
		if err != nil {
			t.Fatal(err)
		}
		checkConservation(t)
	}

	_, err := l.Withdraw(ctx, sellerA)
	if err != nil {
		t.Fatal(err)
	}
	checkConservation(t)

	_, err = l.Withdraw(ctx, sellerB)
	if err != nil {
		t.Fatal(err)
	}
	checkConservation(t)
}
