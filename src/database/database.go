package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/tradejournal/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateUserTable()
	migrateTradeTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		auth_provider TEXT DEFAULT 'local',
		is_email_verified BOOLEAN DEFAULT FALSE,
		email_verification_token TEXT,
		email_verification_token_expires_at TIMESTAMP,
		password_reset_token TEXT,
		password_reset_token_expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		trade_date TEXT NOT NULL,
		ticker TEXT NOT NULL,
		ticker_name TEXT,
		realized_profit REAL,
		reason TEXT,
		reflection TEXT,
		image_key TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_trades_user_date ON trades(user_id, trade_date);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// tableColumns returns the set of column names for an existing table, or nil
// if the table does not exist yet (creation will handle it).
func tableColumns(table string) map[string]bool {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("Table does not exist, no migration needed as table will be created.", "table", table)
			} else {
				stdlog.Printf("Table %s does not exist, no migration needed as table will be created.", table)
			}
			return nil
		}
		if logger.L != nil {
			logger.L.Error("Error checking for table", "table", table, "error", err)
		} else {
			stdlog.Printf("Error checking for table %s: %v", table, err)
		}
		return nil
	}

	rows, err := DB.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema", "table", table, "error", err)
		} else {
			stdlog.Printf("Error querying table schema for %s: %v", table, err)
		}
		return nil
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info", "table", table, "error", err)
			} else {
				stdlog.Printf("Error scanning column info for %s: %v", table, err)
			}
			return nil
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info", "table", table, "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for %s: %v", table, err)
		}
		return nil
	}
	return columnExists
}

func addColumnIfMissing(columnExists map[string]bool, table, column, definition string) {
	if _, ok := columnExists[column]; ok {
		return
	}
	_, err := DB.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + definition)
	if err != nil {
		logger.L.Error("Error adding column", "table", table, "column", column, "error", err)
	} else {
		logger.L.Info("Added column", "table", table, "column", column)
	}
}

func migrateUserTable() {
	columnExists := tableColumns("users")
	if columnExists == nil {
		return
	}

	addColumnIfMissing(columnExists, "users", "email", "TEXT NOT NULL DEFAULT ''")
	addColumnIfMissing(columnExists, "users", "is_email_verified", "BOOLEAN DEFAULT FALSE")
	addColumnIfMissing(columnExists, "users", "email_verification_token", "TEXT")
	addColumnIfMissing(columnExists, "users", "email_verification_token_expires_at", "TIMESTAMP")
	addColumnIfMissing(columnExists, "users", "password_reset_token", "TEXT")
	addColumnIfMissing(columnExists, "users", "password_reset_token_expires_at", "TIMESTAMP")
	addColumnIfMissing(columnExists, "users", "auth_provider", "TEXT DEFAULT 'local'")
	addColumnIfMissing(columnExists, "users", "created_at", "TIMESTAMP DEFAULT CURRENT_TIMESTAMP")
	addColumnIfMissing(columnExists, "users", "updated_at", "TIMESTAMP DEFAULT CURRENT_TIMESTAMP")
}

func migrateTradeTable() {
	columnExists := tableColumns("trades")
	if columnExists == nil {
		return
	}

	// ticker_name and image_key arrived after the initial schema.
	addColumnIfMissing(columnExists, "trades", "ticker_name", "TEXT")
	addColumnIfMissing(columnExists, "trades", "reflection", "TEXT")
	addColumnIfMissing(columnExists, "trades", "image_key", "TEXT")
	addColumnIfMissing(columnExists, "trades", "updated_at", "TIMESTAMP DEFAULT CURRENT_TIMESTAMP")
}
