package sqlinline

const QCharitiesByIDs = `--sql 5d2f6b18-9c4e-4e07-a3b1-8f6d2c0e4a95
select id, name, coalesce(wallet_address, '')
from charities
where id = any($1::text[]);
`
