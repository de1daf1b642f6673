package database

const (
	// Account queries
	queryInsertAccount = `
		INSERT INTO accounts (id, name, email, segment) VALUES (?, ?, ?, ?)`

	queryGetAccountById = `
		SELECT id, name, email, segment, created_at, updated_at
		FROM accounts
		WHERE id = ? AND active = 1`

	queryGetAccountByEmail = `
		SELECT id, name, email, segment, created_at, updated_at
		FROM accounts
		WHERE email = ? AND active = 1`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM account_balances
		WHERE account_id = ? AND kind = ?`

	queryGetAllBalances = `
		SELECT id, account_id, kind, balance, last_entry_id, version, updated_at
		FROM account_balances
		WHERE account_id = ?
		ORDER BY kind`

	queryGetBalanceForUpdate = `
		SELECT id, balance, version
		FROM account_balances
		WHERE account_id = ? AND kind = ?`

	queryInsertAccountBalance = `
		INSERT INTO account_balances (id, account_id, kind, balance, version)
		VALUES (?, ?, ?, ?, ?)`

	queryUpdateAccountBalance = `
		UPDATE account_balances
		SET balance = ?, last_entry_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ? AND kind = ? AND version = ?`

	// Ledger queries
	queryInsertLedgerEntry = `
		INSERT INTO ledger_entries (
			id, account_id, balance_kind, kind, amount, balance_before, balance_after,
			reference_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetLedgerHistory = `
		SELECT id, account_id, balance_kind, kind, amount, balance_before, balance_after,
		       reference_id, created_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	queryReplayBalance = `
		SELECT amount
		FROM ledger_entries
		WHERE account_id = ? AND balance_kind = ?
		ORDER BY created_at, id`

	// Catalog queries
	queryUpsertCase = `
		INSERT INTO cases (id, name, price, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price, active = excluded.active`

	queryGetCase = `
		SELECT id, name, price, active, created_at
		FROM cases
		WHERE id = ?`

	queryUpsertPrize = `
		INSERT INTO prizes (id, case_id, name, value, probability, bonus_probability, drawable, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			case_id = excluded.case_id, name = excluded.name, value = excluded.value,
			probability = excluded.probability, bonus_probability = excluded.bonus_probability,
			drawable = excluded.drawable, active = excluded.active`

	queryGetCasePrizes = `
		SELECT id, case_id, name, value, probability, bonus_probability, drawable, active
		FROM prizes
		WHERE case_id = ? AND active = 1
		ORDER BY probability DESC, id`

	// Purchase queries
	queryInsertPurchase = `
		INSERT INTO purchases (id, account_id, case_id, prize_id, stake_amount, payout_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetPurchases = `
		SELECT id, account_id, case_id, prize_id, stake_amount, payout_amount, created_at
		FROM purchases
		WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	// Payment request queries
	queryFindOpenPaymentByKey = `
		SELECT id, account_id, direction, amount, idempotency_key, status,
		       provider_reference, pix_code, pix_qr_image, created_at, updated_at
		FROM payment_requests
		WHERE idempotency_key = ? AND status = 'pending' AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT 1`

	queryInsertPaymentRequest = `
		INSERT INTO payment_requests (
			id, account_id, direction, amount, idempotency_key, status,
			provider_reference, pix_code, pix_qr_image, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryAttachProviderReference = `
		UPDATE payment_requests
		SET provider_reference = ?, pix_code = ?, pix_qr_image = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`

	queryGetPaymentById = `
		SELECT id, account_id, direction, amount, idempotency_key, status,
		       provider_reference, pix_code, pix_qr_image, created_at, updated_at
		FROM payment_requests
		WHERE id = ?`

	queryGetPaymentByProviderRef = `
		SELECT id, account_id, direction, amount, idempotency_key, status,
		       provider_reference, pix_code, pix_qr_image, created_at, updated_at
		FROM payment_requests
		WHERE provider_reference = ?`

	queryUpdatePaymentStatus = `
		UPDATE payment_requests
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`

	queryListPendingPayments = `
		SELECT id, account_id, direction, amount, idempotency_key, status,
		       provider_reference, pix_code, pix_qr_image, created_at, updated_at
		FROM payment_requests
		WHERE status = 'pending' AND provider_reference != '' AND created_at <= ?
		ORDER BY created_at`

	// Referral queries
	queryInsertReferralLink = `
		INSERT OR IGNORE INTO referral_links (referred_account_id, affiliate_account_id)
		VALUES (?, ?)`

	queryGetReferralLink = `
		SELECT referred_account_id, affiliate_account_id, first_qualifying_deposit_at, created_at
		FROM referral_links
		WHERE referred_account_id = ?`

	queryClaimFirstQualifyingDeposit = `
		UPDATE referral_links
		SET first_qualifying_deposit_at = ?
		WHERE referred_account_id = ? AND first_qualifying_deposit_at IS NULL`
)
