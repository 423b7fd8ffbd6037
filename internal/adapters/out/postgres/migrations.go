package postgres

import (
	"fmt"

	"orderflow/internal/adapters/out/eventbus/pglisten"
	"orderflow/internal/adapters/out/postgres/historyrepo"
	"orderflow/internal/adapters/out/postgres/noticerepo"
	"orderflow/internal/adapters/out/postgres/orderrepo"

	"gorm.io/gorm"
)

// notifyFunction publishes one notification per committed write on the orders table.
// Payloads carry identifiers only; listeners read the row back.
const notifyFunction = `
CREATE OR REPLACE FUNCTION notify_order_change() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('%s', json_build_object(
		'id', NEW.id,
		'version', NEW.version,
		'status', NEW.status,
		'previous', CASE WHEN TG_OP = 'INSERT' THEN '' ELSE OLD.status END
	)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`

const dropNotifyTrigger = `DROP TRIGGER IF EXISTS orders_notify_change ON orders`

const notifyTrigger = `
CREATE TRIGGER orders_notify_change
	AFTER INSERT OR UPDATE ON orders
	FOR EACH ROW EXECUTE FUNCTION notify_order_change()`

// Migrate creates or updates the schema. On PostgreSQL it also installs the number
// sequence and the change trigger used by the listening event bus.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	if err := db.AutoMigrate(
		&orderrepo.OrderDTO{},
		&historyrepo.EntryDTO{},
		&noticerepo.NoticeDTO{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	statements := []string{
		fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s", orderrepo.NumberSequence),
		fmt.Sprintf("SELECT setval('%[1]s', m) FROM (SELECT MAX(number) AS m FROM orders) s "+
			"WHERE m IS NOT NULL AND m >= (SELECT last_value FROM %[1]s)", orderrepo.NumberSequence),
		fmt.Sprintf(notifyFunction, pglisten.Channel),
		dropNotifyTrigger,
		notifyTrigger,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
