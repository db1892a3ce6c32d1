package clone

// SQL blocks executed through psql during the cleaning, restore and
// verification stages. Table names come from pg_tables at execution time and
// are quoted server-side, so none of these interpolate caller input.

// truncateTablesSQL empties every base table in the public schema while
// keeping structure. Trigger firing is suspended around the whole block and
// CASCADE handles FK ordering.
const truncateTablesSQL = `
DO $$ DECLARE
    r RECORD;
BEGIN
    SET session_replication_role = 'replica';
    FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
        EXECUTE 'TRUNCATE TABLE public.' || quote_ident(r.tablename) || ' CASCADE';
    END LOOP;
    SET session_replication_role = 'origin';
END $$;
`

// dropTablesSQL removes every base table in the public schema entirely.
const dropTablesSQL = `
DO $$ DECLARE
    r RECORD;
BEGIN
    FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
        EXECUTE 'DROP TABLE IF EXISTS public.' || quote_ident(r.tablename) || ' CASCADE';
    END LOOP;
END $$;
`

// restorePreamble tunes the session for bulk load before a plain-format
// restore: async commit, more sort memory, no parallel workers, no triggers.
const restorePreamble = `-- Performance settings for faster restore
SET synchronous_commit = off;
SET work_mem = '256MB';
SET maintenance_work_mem = '512MB';
SET max_parallel_workers_per_gather = 0;
SET session_replication_role = 'replica';

`

// restorePostamble puts the session back to normal.
const restorePostamble = `

-- Reset settings
SET session_replication_role = 'origin';
SET synchronous_commit = on;
`

// verifyTableCountSQL counts base tables in the public schema. Informational
// only; an unparsable result is coerced to 0.
const verifyTableCountSQL = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE';`
