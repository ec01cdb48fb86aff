package sqlinline

const QListUserDonations = `--sql 7a08e4f6-cb8a-42c4-bd7f-291d6e913edc
select id, user_id, charity_id, amount_fiat::text, amount_crypto::text,
       transaction_hash, status, created_at
from donations
where user_id = $1::text
order by created_at desc, id desc;
`

const QInsertDonation = `--sql 9b79c57c-3615-48a2-9d85-3426d5b3f7eb
insert into donations(id, user_id, charity_id, amount_fiat, amount_crypto, transaction_hash, status, created_at)
values (
  coalesce(nullif($1::text, ''), gen_random_uuid()::text),
  $2::text,
  nullif($3::text, ''),
  coalesce($4::numeric, 0),
  $5::numeric,
  nullif($6::text, ''),
  $7::text,
  coalesce($8::timestamptz, now())
)
returning id, user_id, charity_id, amount_fiat::text, amount_crypto::text,
          transaction_hash, status, created_at;
`

// QSettleDonation only touches rows that are pending or already carry the
// requested status, so a backward transition updates nothing.
const QSettleDonation = `--sql 3c1e8d52-6a0f-4b7e-9f1d-2e5a7c4b8d61
update donations
set status = $2::text
where transaction_hash = $1::text
  and (coalesce(status, 'completed') = $2::text or status = 'pending')
returning id, user_id, charity_id, amount_fiat::text, amount_crypto::text,
          transaction_hash, status, created_at;
`

const QDonationStatusByHash = `--sql e4b7a9c0-2d3f-4a61-8b5e-6f0c1d9a7e23
select coalesce(status, 'completed')
from donations
where transaction_hash = $1::text
limit 1;
`
